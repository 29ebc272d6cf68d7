package gacha

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinjinsansan/tensei-sub001/internal/common"
	"github.com/jinjinsansan/tensei-sub001/internal/features/catalog"
)

// fakePullStore накапливает крутки в памяти.
type fakePullStore struct {
	mu       sync.Mutex
	pulls    []*DrawRecord
	sessions map[string]*MultiSession
	// failAfter > 0 роняет CreatePull начиная с N-го вызова
	failAfter int
	calls     int
}

func newFakePullStore() *fakePullStore {
	return &fakePullStore{sessions: make(map[string]*MultiSession)}
}

func (f *fakePullStore) CreatePull(_ context.Context, userID, sessionID string, multiSessionID *string, result DrawResult, story StoryPayload, gachaType string) (*DrawRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAfter > 0 && f.calls >= f.failAfter {
		return nil, errors.New("insert failed")
	}
	rec := &DrawRecord{
		ID:             fmt.Sprintf("d%d", f.calls),
		UserID:         userID,
		SessionID:      sessionID,
		MultiSessionID: multiSessionID,
		CharacterID:    result.CharacterID,
		CardID:         result.CardID,
		StarLevel:      result.StarRating,
		HadReversal:    result.IsReversal,
		HistoryID:      fmt.Sprintf("h%d", f.calls),
		ObtainedVia:    gachaType,
	}
	f.pulls = append(f.pulls, rec)
	return rec, nil
}

func (f *fakePullStore) GetDraw(_ context.Context, drawID string) (*DrawRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.pulls {
		if rec.ID == drawID {
			return rec, nil
		}
	}
	return nil, common.ErrDrawNotFound
}

func (f *fakePullStore) ListPendingByUser(_ context.Context, userID string, limit int) ([]DrawRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []DrawRecord
	for _, rec := range f.pulls {
		if rec.UserID == userID && !rec.Settled && len(out) < limit {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *fakePullStore) CreateMultiSession(_ context.Context, userID string, totalPulls int) (*MultiSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session := &MultiSession{
		ID:         fmt.Sprintf("ms%d", len(f.sessions)+1),
		UserID:     userID,
		TotalPulls: totalPulls,
		Status:     MultiRunning,
	}
	f.sessions[session.ID] = session
	return session, nil
}

func (f *fakePullStore) UpdateMultiSession(_ context.Context, sessionID string, pullsCompleted int, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return errors.New("unknown session")
	}
	session.PullsCompleted = pullsCompleted
	session.Status = status
	return nil
}

// fakeCatalog отдаёт фиксированный снимок или ошибку.
type fakeCatalog struct {
	snap *catalog.Snapshot
	err  error
}

func (f *fakeCatalog) LoadSnapshot(context.Context, string) (*catalog.Snapshot, error) {
	return f.snap, f.err
}

// fakeLedger эмулирует условное списание билетов.
type fakeLedger struct {
	mu      sync.Mutex
	balance int
}

func (f *fakeLedger) Consume(_ context.Context, _, _ string, n int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balance < n {
		return 0, common.ErrInsufficientTicket
	}
	f.balance -= n
	return f.balance, nil
}

func (f *fakeLedger) GetBalance(context.Context, string, string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance, nil
}

func TestPlaySingle(t *testing.T) {
	store := newFakePullStore()
	ledger := &fakeLedger{balance: 5}
	snap := testSnapshot(t, 0, 0, nil)
	svc := NewService(store, &fakeCatalog{snap: snap}, ledger, 10, rand.New(rand.NewSource(1)).Float64)

	resp, err := svc.Play(context.Background(), "u1", "s1", PlayOptions{DrawCount: 1})
	require.NoError(t, err)

	require.Len(t, resp.Pulls, 1)
	assert.Nil(t, resp.MultiSession)
	assert.Equal(t, 4, resp.TicketBalance)
	assert.Equal(t, GachaTypeSingle, store.pulls[0].ObtainedVia)
	assert.Nil(t, store.pulls[0].MultiSessionID)
	assert.False(t, store.pulls[0].Settled)
}

func TestPlayTenfold(t *testing.T) {
	store := newFakePullStore()
	ledger := &fakeLedger{balance: 10}
	snap := testSnapshot(t, 0, 0, nil)
	svc := NewService(store, &fakeCatalog{snap: snap}, ledger, 10, rand.New(rand.NewSource(2)).Float64)

	resp, err := svc.Play(context.Background(), "u1", "s1", PlayOptions{DrawCount: 10})
	require.NoError(t, err)

	require.Len(t, resp.Pulls, 10)
	require.NotNil(t, resp.MultiSession)
	assert.Equal(t, MultiCompleted, resp.MultiSession.Status)
	assert.Equal(t, 10, resp.MultiSession.PullsCompleted)
	assert.Equal(t, 0, resp.TicketBalance)

	for _, rec := range store.pulls {
		assert.Equal(t, GachaTypeTenfold, rec.ObtainedVia)
		require.NotNil(t, rec.MultiSessionID)
		assert.Equal(t, resp.MultiSession.ID, *rec.MultiSessionID)
	}
}

func TestPlayInsufficientTickets(t *testing.T) {
	store := newFakePullStore()
	ledger := &fakeLedger{balance: 3}
	snap := testSnapshot(t, 0, 0, nil)
	svc := NewService(store, &fakeCatalog{snap: snap}, ledger, 10, nil)

	_, err := svc.Play(context.Background(), "u1", "s1", PlayOptions{DrawCount: 10})
	assert.ErrorIs(t, err, common.ErrInsufficientTicket)

	// Отказ до генерации: ни круток, ни списания
	assert.Empty(t, store.pulls)
	assert.Equal(t, 3, ledger.balance)
}

func TestPlayInvalidDrawCount(t *testing.T) {
	store := newFakePullStore()
	ledger := &fakeLedger{balance: 100}
	svc := NewService(store, &fakeCatalog{snap: testSnapshot(t, 0, 0, nil)}, ledger, 10, nil)
	ctx := context.Background()

	for _, n := range []int{0, -1, 11} {
		_, err := svc.Play(ctx, "u1", "s1", PlayOptions{DrawCount: n})
		assert.ErrorIs(t, err, common.ErrInvalidDrawCount, "drawCount=%d", n)
	}
	assert.Equal(t, 100, ledger.balance)
}

func TestPlayValidation(t *testing.T) {
	svc := NewService(newFakePullStore(), &fakeCatalog{}, &fakeLedger{balance: 1}, 10, nil)
	ctx := context.Background()

	_, err := svc.Play(ctx, "", "s1", PlayOptions{DrawCount: 1})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = svc.Play(ctx, "u1", "", PlayOptions{DrawCount: 1})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestPlayUnlimitedSkipsConsume(t *testing.T) {
	store := newFakePullStore()
	ledger := &fakeLedger{balance: 2}
	snap := testSnapshot(t, 0, 0, nil)
	svc := NewService(store, &fakeCatalog{snap: snap}, ledger, 10, rand.New(rand.NewSource(3)).Float64)

	resp, err := svc.Play(context.Background(), "admin", "s1", PlayOptions{DrawCount: 5, Unlimited: true})
	require.NoError(t, err)

	assert.Len(t, resp.Pulls, 5)
	assert.Equal(t, 2, ledger.balance)
	assert.Equal(t, 2, resp.TicketBalance)
}

func TestPlayCatalogFailureKeepsTicketsConsumed(t *testing.T) {
	store := newFakePullStore()
	ledger := &fakeLedger{balance: 10}
	loadErr := errors.New("catalog unavailable")
	svc := NewService(store, &fakeCatalog{err: loadErr}, ledger, 10, nil)

	_, err := svc.Play(context.Background(), "u1", "s1", PlayOptions{DrawCount: 10})
	assert.ErrorIs(t, err, loadErr)

	// Билеты остаются списанными — возврат делает админская отмена
	assert.Equal(t, 0, ledger.balance)
	assert.Empty(t, store.pulls)
}

func TestPlayMidBatchFailure(t *testing.T) {
	store := newFakePullStore()
	store.failAfter = 4
	ledger := &fakeLedger{balance: 10}
	snap := testSnapshot(t, 0, 0, nil)
	svc := NewService(store, &fakeCatalog{snap: snap}, ledger, 10, rand.New(rand.NewSource(4)).Float64)

	_, err := svc.Play(context.Background(), "u1", "s1", PlayOptions{DrawCount: 10})
	require.Error(t, err)

	// Три крутки сохранились, билеты за всю пачку списаны
	assert.Len(t, store.pulls, 3)
	assert.Equal(t, 0, ledger.balance)

	// Мульти-сессия помечена ошибочной с фактическим прогрессом
	require.Len(t, store.sessions, 1)
	for _, session := range store.sessions {
		assert.Equal(t, MultiError, session.Status)
		assert.Equal(t, 3, session.PullsCompleted)
	}
}

func TestListPendingDefaultLimit(t *testing.T) {
	store := newFakePullStore()
	ledger := &fakeLedger{balance: 100}
	snap := testSnapshot(t, 0, 0, nil)
	svc := NewService(store, &fakeCatalog{snap: snap}, ledger, 10, rand.New(rand.NewSource(5)).Float64)
	ctx := context.Background()

	_, err := svc.Play(ctx, "u1", "s1", PlayOptions{DrawCount: 3})
	require.NoError(t, err)

	pending, err := svc.ListPending(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	pending, err = svc.ListPending(ctx, "u1", 2)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}
