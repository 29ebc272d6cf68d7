// Package users ведёт учёт игроков. Аутентификация внешняя: сюда
// приходит уже проверенный идентификатор, мы только заводим строку
// и отмечаем активность.
package users

import "time"

// User — строка таблицы app_users.
type User struct {
	ID         string    `db:"id"`
	ExternalID string    `db:"external_id"`
	Nickname   string    `db:"nickname"`
	IsAdmin    bool      `db:"is_admin"`
	CreatedAt  time.Time `db:"created_at"`
	LastSeenAt time.Time `db:"last_seen_at"`
}
