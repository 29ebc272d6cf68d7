// Package gacha — repository.go сохраняет крутки в PostgreSQL.
package gacha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jinjinsansan/tensei-sub001/internal/common"
)

// Repository работает с таблицами gacha_results, gacha_history
// и multi_gacha_sessions.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий круток.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreatePull сохраняет одну крутку: запись истории со статусом pending
// и запись результата с card_awarded = FALSE, в одной транзакции.
func (r *Repository) CreatePull(ctx context.Context, userID, sessionID string, multiSessionID *string, result DrawResult, story StoryPayload, gachaType string) (*DrawRecord, error) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации результата: %w", err)
	}
	storyJSON, err := json.Marshal(story)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации сценария: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	historyID := uuid.New().String()
	_, err = tx.Exec(ctx, `
		INSERT INTO gacha_history (id, app_user_id, session_id, star_level, status, gacha_type)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, historyID, userID, sessionID, result.StarRating, HistoryPending, gachaType)
	if err != nil {
		return nil, fmt.Errorf("ошибка записи истории: %w", err)
	}

	record := &DrawRecord{
		ID:             uuid.New().String(),
		UserID:         userID,
		SessionID:      sessionID,
		MultiSessionID: multiSessionID,
		CharacterID:    result.CharacterID,
		CardID:         result.CardID,
		StarLevel:      result.StarRating,
		HadReversal:    result.IsReversal,
		Settled:        false,
		Result:         resultJSON,
		Scenario:       storyJSON,
		HistoryID:      historyID,
		ObtainedVia:    gachaType,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO gacha_results (
			id, app_user_id, session_id, multi_session_id, character_id, card_id,
			star_level, had_reversal, card_awarded, result_snapshot,
			scenario_snapshot, history_id, obtained_via
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9, $10, $11, $12)
		RETURNING created_at
	`,
		record.ID, userID, sessionID, multiSessionID, result.CharacterID, result.CardID,
		result.StarRating, result.IsReversal, resultJSON, storyJSON, historyID, gachaType,
	).Scan(&record.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ошибка записи крутки: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ошибка коммита крутки: %w", err)
	}
	return record, nil
}

// GetDraw возвращает запись крутки по идентификатору.
func (r *Repository) GetDraw(ctx context.Context, drawID string) (*DrawRecord, error) {
	var rec DrawRecord
	err := r.db.QueryRow(ctx, `
		SELECT id, app_user_id, session_id, multi_session_id, character_id, card_id,
		       star_level, had_reversal, card_awarded, result_snapshot,
		       scenario_snapshot, history_id, obtained_via, created_at, completed_at
		FROM gacha_results
		WHERE id = $1
	`, drawID).Scan(
		&rec.ID, &rec.UserID, &rec.SessionID, &rec.MultiSessionID, &rec.CharacterID,
		&rec.CardID, &rec.StarLevel, &rec.HadReversal, &rec.Settled, &rec.Result,
		&rec.Scenario, &rec.HistoryID, &rec.ObtainedVia, &rec.CreatedAt, &rec.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrDrawNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения крутки: %w", err)
	}
	return &rec, nil
}

// ListPendingByUser возвращает неразрешённые крутки пользователя,
// старые первыми.
func (r *Repository) ListPendingByUser(ctx context.Context, userID string, limit int) ([]DrawRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, app_user_id, session_id, multi_session_id, character_id, card_id,
		       star_level, had_reversal, card_awarded, result_snapshot,
		       scenario_snapshot, history_id, obtained_via, created_at, completed_at
		FROM gacha_results
		WHERE app_user_id = $1 AND card_awarded = FALSE
		ORDER BY created_at ASC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки незавершённых круток: %w", err)
	}
	defer rows.Close()
	return scanDrawRecords(rows)
}

// CreateMultiSession открывает сессию мульти-крутки.
func (r *Repository) CreateMultiSession(ctx context.Context, userID string, totalPulls int) (*MultiSession, error) {
	session := &MultiSession{
		ID:         uuid.New().String(),
		UserID:     userID,
		TotalPulls: totalPulls,
		Status:     MultiRunning,
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO multi_gacha_sessions (id, app_user_id, total_pulls, pulls_completed, status)
		VALUES ($1, $2, $3, 0, $4)
		RETURNING created_at, updated_at
	`, session.ID, userID, totalPulls, MultiRunning).Scan(&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания мульти-сессии: %w", err)
	}
	return session, nil
}

// UpdateMultiSession обновляет прогресс и статус мульти-сессии.
func (r *Repository) UpdateMultiSession(ctx context.Context, sessionID string, pullsCompleted int, status string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE multi_gacha_sessions
		SET pulls_completed = $2, status = $3, updated_at = NOW()
		WHERE id = $1
	`, sessionID, pullsCompleted, status)
	if err != nil {
		return fmt.Errorf("ошибка обновления мульти-сессии: %w", err)
	}
	return nil
}

func scanDrawRecords(rows pgx.Rows) ([]DrawRecord, error) {
	var out []DrawRecord
	for rows.Next() {
		var rec DrawRecord
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.SessionID, &rec.MultiSessionID, &rec.CharacterID,
			&rec.CardID, &rec.StarLevel, &rec.HadReversal, &rec.Settled, &rec.Result,
			&rec.Scenario, &rec.HistoryID, &rec.ObtainedVia, &rec.CreatedAt, &rec.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка чтения строки крутки: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
