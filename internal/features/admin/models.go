// Package admin реализует операторскую поверхность: парольная
// аутентификация и ручные оверрайды начисления.
// models.go описывает структуры сессий и попыток входа.
package admin

import "time"

// Session — активная сессия оператора. Токен предъявляется
// в заголовке Authorization: Bearer.
type Session struct {
	ID              int64     `db:"id"`
	Operator        string    `db:"operator"`
	SessionToken    string    `db:"session_token"`
	AuthenticatedAt time.Time `db:"authenticated_at"`
	ExpiresAt       time.Time `db:"expires_at"`
	LastActivity    time.Time `db:"last_activity"`
	IsActive        bool      `db:"is_active"`
}

// LoginAttempt — попытка входа (для защиты от brute-force).
type LoginAttempt struct {
	ID          int64     `db:"id"`
	Operator    string    `db:"operator"`
	AttemptTime time.Time `db:"attempt_time"`
	Success     bool      `db:"success"`
}
