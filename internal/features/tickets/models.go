// Package tickets ведёт билетный леджер: целочисленный баланс на
// пользователя и тип билета.
package tickets

import "time"

// Типы билетов
const (
	TypeBasic   = "basic"
	TypePremium = "premium"
)

// Balance — строка таблицы user_tickets.
type Balance struct {
	UserID     string    `db:"app_user_id"`
	TicketType string    `db:"ticket_type"`
	Quantity   int       `db:"quantity"`
	UpdatedAt  time.Time `db:"updated_at"`
}
