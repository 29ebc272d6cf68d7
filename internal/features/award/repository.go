// Package award — repository.go: атомарные операции начисления в PostgreSQL.
// Истина о том, начислена ли крутка, — уникальный индекс card_inventory
// по gacha_result_id и условный UPDATE card_awarded. Флаг card_awarded
// в прочитанной строке — только быстрый путь, гонку он не закрывает.
package award

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jinjinsansan/tensei-sub001/internal/common"
	"github.com/jinjinsansan/tensei-sub001/internal/features/gacha"
)

// Код PostgreSQL для нарушения уникального ограничения
const pgUniqueViolation = "23505"

// Repository выполняет операции начисления.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий начислений.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ResolveCardAndUser проверяет, что карта и пользователь существуют.
// Отсутствие любого из них — постоянная ошибка данных, крутка
// при этом не помечается завершённой.
func (r *Repository) ResolveCardAndUser(ctx context.Context, cardID, userID string) error {
	var cardExists, userExists bool
	err := r.db.QueryRow(ctx, `
		SELECT
			EXISTS(SELECT 1 FROM cards WHERE id = $1),
			EXISTS(SELECT 1 FROM app_users WHERE id = $2)
	`, cardID, userID).Scan(&cardExists, &userExists)
	if err != nil {
		return fmt.Errorf("ошибка проверки карты и пользователя: %w", err)
	}
	if !cardExists || !userExists {
		return common.ErrNotFoundCardOrUser
	}
	return nil
}

// CreateAward начисляет награду за крутку в одной транзакции:
//  1. атомарно резервирует следующий серийный номер карты;
//  2. вставляет инвентарную запись под двумя уникальными ограничениями;
//  3. условно переводит card_awarded FALSE→TRUE;
//  4. переводит историю в success и увеличивает тираж карты.
//
// Нарушение уникальности и нулевой условный UPDATE означают, что
// конкурент успел раньше — транзакция откатывается и возвращается
// ErrConcurrencyConflict.
func (r *Repository) CreateAward(ctx context.Context, draw *gacha.DrawRecord) (*InventoryEntry, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	// Счётчик серий: разные крутки одной карты никогда не получат
	// один номер — инкремент выполняется в самой БД.
	var serial int
	err = tx.QueryRow(ctx, `
		INSERT INTO card_serials (card_id, last_serial)
		VALUES ($1, 1)
		ON CONFLICT (card_id)
		DO UPDATE SET last_serial = card_serials.last_serial + 1
		RETURNING last_serial
	`, draw.CardID).Scan(&serial)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка выдачи серийного номера: %w", err)
	}

	// «Первая ли это копия» считается до вставки, в той же транзакции
	var ownedBefore bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM card_inventory
			WHERE app_user_id = $1 AND card_id = $2
		)
	`, draw.UserID, draw.CardID).Scan(&ownedBefore)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка проверки владения картой: %w", err)
	}

	entry := &InventoryEntry{
		ID:           uuid.New().String(),
		UserID:       draw.UserID,
		CardID:       draw.CardID,
		SerialNumber: serial,
		DrawRecordID: draw.ID,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO card_inventory (id, app_user_id, card_id, serial_number, gacha_result_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING obtained_at
	`, entry.ID, entry.UserID, entry.CardID, entry.SerialNumber, entry.DrawRecordID).Scan(&entry.ObtainedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, false, common.ErrConcurrencyConflict
		}
		return nil, false, fmt.Errorf("ошибка вставки инвентарной записи: %w", err)
	}

	// Условный переход флага: ноль строк — крутку успели завершить
	// или отменить конкурентно.
	tag, err := tx.Exec(ctx, `
		UPDATE gacha_results
		SET card_awarded = TRUE, completed_at = NOW()
		WHERE id = $1 AND card_awarded = FALSE
	`, draw.ID)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка завершения крутки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, false, common.ErrConcurrencyConflict
	}

	if _, err := tx.Exec(ctx, `
		UPDATE gacha_history
		SET status = $2
		WHERE id = $1 AND status = $3
	`, draw.HistoryID, gacha.HistorySuccess, gacha.HistoryPending); err != nil {
		return nil, false, fmt.Errorf("ошибка обновления истории: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE cards
		SET current_supply = current_supply + 1
		WHERE id = $1
	`, draw.CardID); err != nil {
		return nil, false, fmt.Errorf("ошибка учёта тиража: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("ошибка коммита начисления: %w", err)
	}
	return entry, ownedBefore, nil
}

// GetEntryByDraw возвращает инвентарную запись крутки, если она есть.
func (r *Repository) GetEntryByDraw(ctx context.Context, drawID string) (*InventoryEntry, error) {
	var entry InventoryEntry
	err := r.db.QueryRow(ctx, `
		SELECT id, app_user_id, card_id, serial_number, gacha_result_id, obtained_at
		FROM card_inventory
		WHERE gacha_result_id = $1
	`, drawID).Scan(
		&entry.ID, &entry.UserID, &entry.CardID,
		&entry.SerialNumber, &entry.DrawRecordID, &entry.ObtainedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска инвентарной записи: %w", err)
	}
	return &entry, nil
}

// ListStalePending возвращает незавершённые крутки старше cutoff,
// старые первыми, не больше limit за проход.
func (r *Repository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]gacha.DrawRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, app_user_id, session_id, multi_session_id, character_id, card_id,
		       star_level, had_reversal, card_awarded, result_snapshot,
		       scenario_snapshot, history_id, obtained_via, created_at, completed_at
		FROM gacha_results
		WHERE card_awarded = FALSE AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки зависших круток: %w", err)
	}
	defer rows.Close()

	var out []gacha.DrawRecord
	for rows.Next() {
		var rec gacha.DrawRecord
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.SessionID, &rec.MultiSessionID, &rec.CharacterID,
			&rec.CardID, &rec.StarLevel, &rec.HadReversal, &rec.Settled, &rec.Result,
			&rec.Scenario, &rec.HistoryID, &rec.ObtainedVia, &rec.CreatedAt, &rec.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка чтения зависшей крутки: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CancelPendingByUser терминально отменяет незавершённые крутки
// пользователя и в той же транзакции возвращает билеты. Тот же условный
// UPDATE, что и при начислении: строка отменяется, только если
// card_awarded всё ещё FALSE в момент обновления, поэтому крутка не
// может быть одновременно начислена и возвращена билетами.
// Возврат считается от фактически отменённых строк и коммитится вместе
// с отменой: либо произошло и то и другое, либо ничего.
func (r *Repository) CancelPendingByUser(ctx context.Context, userID, ticketType string, drawsPerTicket int) (cancelled, refunded, balance int, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		UPDATE gacha_results
		SET card_awarded = TRUE, completed_at = NOW()
		WHERE app_user_id = $1 AND card_awarded = FALSE
		RETURNING history_id
	`, userID)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("ошибка отмены круток: %w", err)
	}
	historyIDs := make([]string, 0)
	for rows.Next() {
		var historyID string
		if err := rows.Scan(&historyID); err != nil {
			rows.Close()
			return 0, 0, 0, fmt.Errorf("ошибка чтения отменённой крутки: %w", err)
		}
		historyIDs = append(historyIDs, historyID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, 0, 0, fmt.Errorf("ошибка обхода отменённых круток: %w", err)
	}
	cancelled = len(historyIDs)

	if cancelled > 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE gacha_history
			SET status = $2
			WHERE id = ANY($1) AND status = $3
		`, historyIDs, gacha.HistoryCancelled, gacha.HistoryPending); err != nil {
			return 0, 0, 0, fmt.Errorf("ошибка отмены истории: %w", err)
		}

		refunded = common.CeilDiv(cancelled, drawsPerTicket)
		if err := tx.QueryRow(ctx, `
			INSERT INTO user_tickets (app_user_id, ticket_type, quantity)
			VALUES ($1, $2, $3)
			ON CONFLICT (app_user_id, ticket_type)
			DO UPDATE SET quantity = user_tickets.quantity + EXCLUDED.quantity, updated_at = NOW()
			RETURNING quantity
		`, userID, ticketType, refunded).Scan(&balance); err != nil {
			return 0, 0, 0, fmt.Errorf("ошибка возврата билетов: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, 0, fmt.Errorf("ошибка коммита отмены: %w", err)
	}
	return cancelled, refunded, balance, nil
}

// CountPendingByUser возвращает число незавершённых круток пользователя.
func (r *Repository) CountPendingByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM gacha_results
		WHERE app_user_id = $1 AND card_awarded = FALSE
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта незавершённых круток: %w", err)
	}
	return count, nil
}

// PendingSummary агрегирует незавершённые крутки по всей базе:
// общий хвост, просроченные старше cutoff и пользователи, накопившие
// не меньше suspiciousMin незавершённых круток.
func (r *Repository) PendingSummary(ctx context.Context, cutoff time.Time, suspiciousMin int) (*PendingSummary, error) {
	summary := &PendingSummary{Suspicious: []PendingUserCount{}}
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE created_at < $1)
		FROM gacha_results
		WHERE card_awarded = FALSE
	`, cutoff).Scan(&summary.TotalPending, &summary.OverdueCount)
	if err != nil {
		return nil, fmt.Errorf("ошибка агрегации незавершённых круток: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT app_user_id, COUNT(*) AS pending_count
		FROM gacha_results
		WHERE card_awarded = FALSE
		GROUP BY app_user_id
		HAVING COUNT(*) >= $1
		ORDER BY pending_count DESC
		LIMIT 50
	`, suspiciousMin)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки подозрительных хвостов: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u PendingUserCount
		if err := rows.Scan(&u.UserID, &u.PendingCount); err != nil {
			return nil, fmt.Errorf("ошибка чтения подозрительного хвоста: %w", err)
		}
		summary.Suspicious = append(summary.Suspicious, u)
	}
	return summary, rows.Err()
}
