package tickets

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinjinsansan/tensei-sub001/internal/common"
)

type fakeLedgerStore struct {
	mu       sync.Mutex
	balances map[string]int // userID|type → количество
	granted  map[string]bool
}

func newFakeLedgerStore() *fakeLedgerStore {
	return &fakeLedgerStore{
		balances: make(map[string]int),
		granted:  make(map[string]bool),
	}
}

func key(userID, ticketType string) string { return userID + "|" + ticketType }

func (f *fakeLedgerStore) Consume(_ context.Context, userID, ticketType string, n int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(userID, ticketType)
	if f.balances[k] < n {
		return 0, common.ErrInsufficientTicket
	}
	f.balances[k] -= n
	return f.balances[k], nil
}

func (f *fakeLedgerStore) Refund(_ context.Context, userID, ticketType string, n int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(userID, ticketType)
	f.balances[k] += n
	return f.balances[k], nil
}

func (f *fakeLedgerStore) GetBalance(_ context.Context, userID, ticketType string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[key(userID, ticketType)], nil
}

func (f *fakeLedgerStore) GrantInitial(_ context.Context, userID, ticketType string, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(userID, ticketType)
	if f.granted[k] {
		return nil
	}
	f.granted[k] = true
	f.balances[k] += n
	return nil
}

func TestConsumeValidation(t *testing.T) {
	svc := NewService(newFakeLedgerStore(), 10)
	ctx := context.Background()

	_, err := svc.Consume(ctx, "u1", TypeBasic, 0)
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = svc.Consume(ctx, "u1", TypeBasic, -3)
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = svc.Consume(ctx, "", TypeBasic, 1)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestConsumeInsufficient(t *testing.T) {
	store := newFakeLedgerStore()
	svc := NewService(store, 10)
	ctx := context.Background()

	_, err := svc.Consume(ctx, "u1", TypeBasic, 1)
	assert.ErrorIs(t, err, common.ErrInsufficientTicket)

	// Баланс не ушёл в минус
	balance, err := svc.GetBalance(ctx, "u1", TypeBasic)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestConsumeAndRefundRoundTrip(t *testing.T) {
	store := newFakeLedgerStore()
	svc := NewService(store, 10)
	ctx := context.Background()

	require.NoError(t, svc.EnsureInitialGrant(ctx, "u1"))

	balance, err := svc.Consume(ctx, "u1", TypeBasic, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, balance)

	balance, err = svc.Refund(ctx, "u1", TypeBasic, 2)
	require.NoError(t, err)
	assert.Equal(t, 9, balance)
}

func TestEnsureInitialGrantIdempotent(t *testing.T) {
	store := newFakeLedgerStore()
	svc := NewService(store, 10)
	ctx := context.Background()

	require.NoError(t, svc.EnsureInitialGrant(ctx, "u1"))
	require.NoError(t, svc.EnsureInitialGrant(ctx, "u1"))

	balance, err := svc.GetBalance(ctx, "u1", TypeBasic)
	require.NoError(t, err)
	assert.Equal(t, 10, balance)
}

func TestRefundValidation(t *testing.T) {
	svc := NewService(newFakeLedgerStore(), 10)
	_, err := svc.Refund(context.Background(), "u1", TypeBasic, 0)
	assert.ErrorIs(t, err, common.ErrValidation)
}
