// Package tickets — repository.go выполняет атомарные операции с балансом.
// Сервис масштабируется горизонтально, поэтому списание и возврат —
// одиночные условные UPDATE, никогда не чтение с последующей записью.
package tickets

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jinjinsansan/tensei-sub001/internal/common"
)

// Repository работает с таблицей user_tickets.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий билетов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Consume атомарно списывает n билетов. Условие quantity >= n входит
// в сам UPDATE: при гонке проигравший запрос не найдёт строку и
// получит ErrInsufficientTicket, баланс не уйдёт в минус.
func (r *Repository) Consume(ctx context.Context, userID, ticketType string, n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("списание %d билетов: %w", n, common.ErrValidation)
	}
	var newBalance int
	err := r.db.QueryRow(ctx, `
		UPDATE user_tickets
		SET quantity = quantity - $3, updated_at = NOW()
		WHERE app_user_id = $1 AND ticket_type = $2 AND quantity >= $3
		RETURNING quantity
	`, userID, ticketType, n).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, common.ErrInsufficientTicket
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка списания билетов: %w", err)
	}
	return newBalance, nil
}

// Refund атомарно возвращает n билетов. Если строки баланса ещё нет,
// она создаётся с возвращаемым количеством.
func (r *Repository) Refund(ctx context.Context, userID, ticketType string, n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("возврат %d билетов: %w", n, common.ErrValidation)
	}
	var newBalance int
	err := r.db.QueryRow(ctx, `
		INSERT INTO user_tickets (app_user_id, ticket_type, quantity, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (app_user_id, ticket_type)
		DO UPDATE SET quantity = user_tickets.quantity + EXCLUDED.quantity, updated_at = NOW()
		RETURNING quantity
	`, userID, ticketType, n).Scan(&newBalance)
	if err != nil {
		return 0, fmt.Errorf("ошибка возврата билетов: %w", err)
	}
	return newBalance, nil
}

// GetBalance возвращает текущий баланс; отсутствие строки — это ноль.
func (r *Repository) GetBalance(ctx context.Context, userID, ticketType string) (int, error) {
	var quantity int
	err := r.db.QueryRow(ctx, `
		SELECT quantity FROM user_tickets
		WHERE app_user_id = $1 AND ticket_type = $2
	`, userID, ticketType).Scan(&quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения баланса: %w", err)
	}
	return quantity, nil
}

// GrantInitial выдаёт стартовые билеты новому пользователю.
// Повторный вызов — no-op: существующий баланс не перезаписывается.
func (r *Repository) GrantInitial(ctx context.Context, userID, ticketType string, n int) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO user_tickets (app_user_id, ticket_type, quantity, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (app_user_id, ticket_type) DO NOTHING
	`, userID, ticketType, n)
	if err != nil {
		return fmt.Errorf("ошибка выдачи стартовых билетов: %w", err)
	}
	return nil
}
