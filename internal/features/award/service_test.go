package award

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinjinsansan/tensei-sub001/internal/common"
	"github.com/jinjinsansan/tensei-sub001/internal/features/gacha"
)

// fakeStore — потокобезопасный двойник хранилища начислений.
// Воспроизводит семантику БД: уникальность награды на крутку,
// атомарный счётчик серий, условный переход card_awarded и
// транзакционность отмены с возвратом билетов.
type fakeStore struct {
	mu       sync.Mutex
	draws    map[string]*gacha.DrawRecord
	entries  map[string]*InventoryEntry // drawID → запись
	serials  map[string]int             // cardID → последний номер
	users    map[string]bool
	cards    map[string]bool
	statuses map[string]string // historyID → статус
	balance  int
	// refundErr роняет транзакцию отмены на шаге возврата билетов
	refundErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		draws:    make(map[string]*gacha.DrawRecord),
		entries:  make(map[string]*InventoryEntry),
		serials:  make(map[string]int),
		users:    make(map[string]bool),
		cards:    make(map[string]bool),
		statuses: make(map[string]string),
	}
}

func (f *fakeStore) addDraw(id, userID, cardID string, createdAt time.Time) *gacha.DrawRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := &gacha.DrawRecord{
		ID:        id,
		UserID:    userID,
		CardID:    cardID,
		HistoryID: "h-" + id,
		CreatedAt: createdAt,
	}
	f.draws[id] = rec
	f.statuses[rec.HistoryID] = gacha.HistoryPending
	f.users[userID] = true
	f.cards[cardID] = true
	return rec
}

func (f *fakeStore) GetDraw(_ context.Context, drawID string) (*gacha.DrawRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.draws[drawID]
	if !ok {
		return nil, common.ErrDrawNotFound
	}
	copied := *rec
	return &copied, nil
}

func (f *fakeStore) ListPendingByUser(_ context.Context, userID string, limit int) ([]gacha.DrawRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []gacha.DrawRecord
	for _, rec := range f.draws {
		if rec.UserID == userID && !rec.Settled && len(out) < limit {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *fakeStore) ResolveCardAndUser(_ context.Context, cardID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.cards[cardID] || !f.users[userID] {
		return common.ErrNotFoundCardOrUser
	}
	return nil
}

func (f *fakeStore) CreateAward(_ context.Context, draw *gacha.DrawRecord) (*InventoryEntry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Уникальность награды на крутку
	if _, exists := f.entries[draw.ID]; exists {
		return nil, false, common.ErrConcurrencyConflict
	}
	// Условный переход флага
	current := f.draws[draw.ID]
	if current == nil || current.Settled {
		return nil, false, common.ErrConcurrencyConflict
	}

	ownedBefore := false
	for _, e := range f.entries {
		if e.UserID == draw.UserID && e.CardID == draw.CardID {
			ownedBefore = true
			break
		}
	}

	f.serials[draw.CardID]++
	entry := &InventoryEntry{
		ID:           fmt.Sprintf("inv-%s", draw.ID),
		UserID:       draw.UserID,
		CardID:       draw.CardID,
		SerialNumber: f.serials[draw.CardID],
		DrawRecordID: draw.ID,
		ObtainedAt:   time.Now(),
	}
	f.entries[draw.ID] = entry
	current.Settled = true
	f.statuses[current.HistoryID] = gacha.HistorySuccess
	return entry, ownedBefore, nil
}

func (f *fakeStore) GetEntryByDraw(_ context.Context, drawID string) (*InventoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[drawID], nil
}

func (f *fakeStore) ListStalePending(_ context.Context, cutoff time.Time, limit int) ([]gacha.DrawRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []gacha.DrawRecord
	for _, rec := range f.draws {
		if !rec.Settled && rec.CreatedAt.Before(cutoff) && len(out) < limit {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *fakeStore) CancelPendingByUser(_ context.Context, userID, _ string, drawsPerTicket int) (int, int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var toCancel []*gacha.DrawRecord
	for _, rec := range f.draws {
		if rec.UserID == userID && !rec.Settled {
			toCancel = append(toCancel, rec)
		}
	}
	if len(toCancel) == 0 {
		return 0, 0, f.balance, nil
	}
	// Сбой возврата откатывает транзакцию целиком: крутки остаются pending
	if f.refundErr != nil {
		return 0, 0, 0, f.refundErr
	}
	for _, rec := range toCancel {
		rec.Settled = true
		f.statuses[rec.HistoryID] = gacha.HistoryCancelled
	}
	refunded := common.CeilDiv(len(toCancel), drawsPerTicket)
	f.balance += refunded
	return len(toCancel), refunded, f.balance, nil
}

func (f *fakeStore) PendingSummary(_ context.Context, cutoff time.Time, suspiciousMin int) (*PendingSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	summary := &PendingSummary{Suspicious: []PendingUserCount{}}
	perUser := make(map[string]int)
	for _, rec := range f.draws {
		if rec.Settled {
			continue
		}
		summary.TotalPending++
		if rec.CreatedAt.Before(cutoff) {
			summary.OverdueCount++
		}
		perUser[rec.UserID]++
	}
	for userID, count := range perUser {
		if count >= suspiciousMin {
			summary.Suspicious = append(summary.Suspicious, PendingUserCount{UserID: userID, PendingCount: count})
		}
	}
	sort.Slice(summary.Suspicious, func(i, j int) bool {
		return summary.Suspicious[i].PendingCount > summary.Suspicious[j].PendingCount
	})
	return summary, nil
}

func (f *fakeStore) CountPendingByUser(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, rec := range f.draws {
		if rec.UserID == userID && !rec.Settled {
			count++
		}
	}
	return count, nil
}

func newTestService(store *fakeStore) *Service {
	return NewService(store, store, nil, 10, "basic")
}

func TestSettleIdempotence(t *testing.T) {
	store := newFakeStore()
	store.addDraw("d1", "u1", "card-a", time.Now())
	svc := newTestService(store)
	ctx := context.Background()

	first, err := svc.Settle(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, first.DidAward)
	require.NotNil(t, first.Entry)
	assert.Equal(t, 1, first.Entry.SerialNumber)
	assert.False(t, first.AlreadyOwnedBefore)

	// Повторный вызов — no-op с тем же результатом
	second, err := svc.Settle(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, second.DidAward)
	require.NotNil(t, second.Entry)
	assert.Equal(t, first.Entry.ID, second.Entry.ID)

	assert.Len(t, store.entries, 1)
	assert.Equal(t, gacha.HistorySuccess, store.statuses["h-d1"])
}

func TestSettleConcurrent(t *testing.T) {
	store := newFakeStore()
	store.addDraw("d1", "u1", "card-a", time.Now())
	svc := newTestService(store)

	const callers = 32
	outcomes := make([]*Outcome, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = svc.Settle(context.Background(), "d1")
		}(i)
	}
	wg.Wait()

	awarded := 0
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		if outcomes[i].DidAward {
			awarded++
		}
	}
	// Ровно один победитель, остальные — безобидный no-op
	assert.Equal(t, 1, awarded)
	assert.Len(t, store.entries, 1)
}

func TestSettleSerialNumbersUnique(t *testing.T) {
	store := newFakeStore()
	const draws = 20
	for i := 0; i < draws; i++ {
		store.addDraw(fmt.Sprintf("d%d", i), "u1", "card-a", time.Now())
	}
	svc := newTestService(store)

	var wg sync.WaitGroup
	for i := 0; i < draws; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Settle(context.Background(), fmt.Sprintf("d%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// Серии одной карты уникальны и непрерывны
	seen := make(map[int]bool)
	for _, entry := range store.entries {
		assert.False(t, seen[entry.SerialNumber], "серийный номер %d выдан дважды", entry.SerialNumber)
		seen[entry.SerialNumber] = true
		assert.GreaterOrEqual(t, entry.SerialNumber, 1)
		assert.LessOrEqual(t, entry.SerialNumber, draws)
	}
	assert.Len(t, seen, draws)
}

func TestSettleUnknownDraw(t *testing.T) {
	svc := newTestService(newFakeStore())
	_, err := svc.Settle(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrDrawNotFound)
}

func TestSettleMissingCardOrUser(t *testing.T) {
	store := newFakeStore()
	rec := store.addDraw("d1", "u1", "card-a", time.Now())
	// Карту удалили из каталога после крутки
	store.mu.Lock()
	store.cards[rec.CardID] = false
	store.mu.Unlock()

	svc := newTestService(store)
	_, err := svc.Settle(context.Background(), "d1")
	assert.ErrorIs(t, err, common.ErrNotFoundCardOrUser)

	// Крутка не помечена завершённой — её можно добрать после починки данных
	draw, getErr := store.GetDraw(context.Background(), "d1")
	require.NoError(t, getErr)
	assert.False(t, draw.Settled)
}

func TestSettleAlreadyOwnedBefore(t *testing.T) {
	store := newFakeStore()
	store.addDraw("d1", "u1", "card-a", time.Now())
	store.addDraw("d2", "u1", "card-a", time.Now())
	svc := newTestService(store)
	ctx := context.Background()

	first, err := svc.Settle(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, first.AlreadyOwnedBefore)

	second, err := svc.Settle(ctx, "d2")
	require.NoError(t, err)
	assert.True(t, second.DidAward)
	assert.True(t, second.AlreadyOwnedBefore)
	assert.Equal(t, 2, second.Entry.SerialNumber)
}

func TestSweepStaleCutoff(t *testing.T) {
	store := newFakeStore()
	// 25 часов назад — попадает в добор, 1 час назад — нет
	store.addDraw("old", "u1", "card-a", time.Now().Add(-25*time.Hour))
	store.addDraw("fresh", "u1", "card-a", time.Now().Add(-1*time.Hour))
	svc := newTestService(store)

	report, err := svc.SweepStale(context.Background(), time.Now().Add(-24*time.Hour), 100)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 1, report.Awarded)
	assert.Equal(t, 0, report.Failed)

	old, _ := store.GetDraw(context.Background(), "old")
	fresh, _ := store.GetDraw(context.Background(), "fresh")
	assert.True(t, old.Settled)
	assert.False(t, fresh.Settled)
}

func TestSweepIsolatesFailures(t *testing.T) {
	store := newFakeStore()
	bad := store.addDraw("bad", "u1", "card-broken", time.Now().Add(-48*time.Hour))
	store.addDraw("good", "u1", "card-a", time.Now().Add(-48*time.Hour))
	store.mu.Lock()
	store.cards[bad.CardID] = false
	store.mu.Unlock()

	svc := newTestService(store)
	report, err := svc.SweepStale(context.Background(), time.Now().Add(-24*time.Hour), 100)
	require.NoError(t, err)

	// Сломанная запись не сорвала пачку
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.Awarded)
	assert.Equal(t, 1, report.Failed)
}

func TestBulkSettleUser(t *testing.T) {
	store := newFakeStore()
	store.addDraw("d1", "u1", "card-a", time.Now())
	store.addDraw("d2", "u1", "card-b", time.Now())
	store.addDraw("other", "u2", "card-a", time.Now())
	svc := newTestService(store)
	ctx := context.Background()

	// Одна крутка уже завершена клиентом
	_, err := svc.Settle(ctx, "d1")
	require.NoError(t, err)

	report, err := svc.BulkSettleUser(ctx, "u1", 100)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Awarded)
	assert.Equal(t, 0, report.Failed)

	// Чужая крутка не тронута
	other, _ := store.GetDraw(ctx, "other")
	assert.False(t, other.Settled)
}

func TestCancelPendingRefund(t *testing.T) {
	t.Run("10 draws refund 1 ticket", func(t *testing.T) {
		store := newFakeStore()
		for i := 0; i < 10; i++ {
			store.addDraw(fmt.Sprintf("d%d", i), "u1", "card-a", time.Now())
		}
		svc := newTestService(store)

		report, err := svc.CancelPendingUser(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, 10, report.Cancelled)
		assert.Equal(t, 1, report.Refunded)
		assert.Equal(t, 1, report.TicketBalance)
	})

	t.Run("11 draws refund 2 tickets", func(t *testing.T) {
		store := newFakeStore()
		for i := 0; i < 11; i++ {
			store.addDraw(fmt.Sprintf("d%d", i), "u1", "card-a", time.Now())
		}
		svc := newTestService(store)

		report, err := svc.CancelPendingUser(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, 11, report.Cancelled)
		assert.Equal(t, 2, report.Refunded)
		assert.Equal(t, 2, report.TicketBalance)
	})

	t.Run("no pending draws refund nothing", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)

		report, err := svc.CancelPendingUser(context.Background(), "u1")
		require.NoError(t, err)
		assert.Zero(t, report.Cancelled)
		assert.Zero(t, report.Refunded)
		assert.Zero(t, store.balance)
	})
}

func TestCancelRefundAtomicWithCancel(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 10; i++ {
		store.addDraw(fmt.Sprintf("d%d", i), "u1", "card-a", time.Now())
	}
	store.refundErr = errors.New("ledger unavailable")
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.CancelPendingUser(ctx, "u1")
	require.Error(t, err)

	// Сбой возврата откатил и отмену: крутки всё ещё pending
	count, err := svc.CountPending(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 10, count)
	assert.Zero(t, store.balance)

	// Повтор после восстановления леджера возвращает всё целиком
	store.refundErr = nil
	report, err := svc.CancelPendingUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 10, report.Cancelled)
	assert.Equal(t, 1, report.Refunded)
	assert.Equal(t, 1, report.TicketBalance)
}

func TestCancelRecomputesAfterRace(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 10; i++ {
		store.addDraw(fmt.Sprintf("d%d", i), "u1", "card-a", time.Now())
	}
	svc := newTestService(store)
	ctx := context.Background()

	// Конкурирующее начисление выиграло гонку за 3 крутки
	for i := 0; i < 3; i++ {
		_, err := svc.Settle(ctx, fmt.Sprintf("d%d", i))
		require.NoError(t, err)
	}

	report, err := svc.CancelPendingUser(ctx, "u1")
	require.NoError(t, err)

	// Возврат считается от 7 фактически отменённых, не от исходных 10
	assert.Equal(t, 7, report.Cancelled)
	assert.Equal(t, 1, report.Refunded)
	assert.Equal(t, 1, store.balance)

	// Начисленные крутки остались начисленными
	assert.Len(t, store.entries, 3)
}

func TestPendingSummary(t *testing.T) {
	store := newFakeStore()
	// u1: 11 незавершённых, две из них просрочены
	for i := 0; i < 9; i++ {
		store.addDraw(fmt.Sprintf("u1-%d", i), "u1", "card-a", time.Now())
	}
	store.addDraw("u1-old1", "u1", "card-a", time.Now().Add(-30*time.Hour))
	store.addDraw("u1-old2", "u1", "card-a", time.Now().Add(-25*time.Hour))
	// u2: маленький хвост, в подозрительные не попадает
	store.addDraw("u2-0", "u2", "card-b", time.Now())
	// u3: всё начислено
	store.addDraw("u3-0", "u3", "card-a", time.Now())

	svc := newTestService(store)
	ctx := context.Background()
	_, err := svc.Settle(ctx, "u3-0")
	require.NoError(t, err)

	summary, err := svc.PendingSummary(ctx)
	require.NoError(t, err)

	assert.Equal(t, 12, summary.TotalPending)
	assert.Equal(t, 2, summary.OverdueCount)
	require.Len(t, summary.Suspicious, 1)
	assert.Equal(t, "u1", summary.Suspicious[0].UserID)
	assert.Equal(t, 11, summary.Suspicious[0].PendingCount)
}

func TestCancelledDrawCannotBeSettled(t *testing.T) {
	store := newFakeStore()
	store.addDraw("d1", "u1", "card-a", time.Now())
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.CancelPendingUser(ctx, "u1")
	require.NoError(t, err)

	// После отмены начисление — безобидный no-op без инвентарной записи
	outcome, err := svc.Settle(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, outcome.DidAward)
	assert.Nil(t, outcome.Entry)
	assert.Empty(t, store.entries)
}
