// Package users — repository.go работает с таблицей app_users.
package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jinjinsansan/tensei-sub001/internal/common"
)

// Repository работает с таблицей app_users.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий пользователей.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Upsert создаёт пользователя или отмечает его активность.
// Возвращает строку и признак «пользователь только что создан».
func (r *Repository) Upsert(ctx context.Context, id, externalID, nickname string) (*User, bool, error) {
	var (
		u       User
		created bool
	)
	err := r.db.QueryRow(ctx, `
		INSERT INTO app_users (id, external_id, nickname)
		VALUES ($1, $2, $3)
		ON CONFLICT (id)
		DO UPDATE SET last_seen_at = NOW(), nickname = EXCLUDED.nickname
		RETURNING id, external_id, nickname, is_admin, created_at, last_seen_at,
		          (created_at = last_seen_at) AS just_created
	`, id, externalID, nickname).Scan(
		&u.ID, &u.ExternalID, &u.Nickname, &u.IsAdmin,
		&u.CreatedAt, &u.LastSeenAt, &created,
	)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка upsert пользователя: %w", err)
	}
	return &u, created, nil
}

// GetByID возвращает пользователя по идентификатору.
func (r *Repository) GetByID(ctx context.Context, id string) (*User, error) {
	var u User
	err := r.db.QueryRow(ctx, `
		SELECT id, external_id, nickname, is_admin, created_at, last_seen_at
		FROM app_users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.ExternalID, &u.Nickname, &u.IsAdmin, &u.CreatedAt, &u.LastSeenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFoundCardOrUser
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения пользователя: %w", err)
	}
	return &u, nil
}
