package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gamersarena/GamersArena/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		allowed  bool
	}{
		{models.TransactionStatusPending, models.TransactionStatusCompleted, true},
		{models.TransactionStatusPending, models.TransactionStatusFailed, true},
		{models.TransactionStatusPending, models.TransactionStatusRefunded, false},
		{models.TransactionStatusCompleted, models.TransactionStatusRefunded, true},
		{models.TransactionStatusCompleted, models.TransactionStatusFailed, false},
		{models.TransactionStatusCompleted, models.TransactionStatusPending, false},
		{models.TransactionStatusFailed, models.TransactionStatusCompleted, false},
		{models.TransactionStatusFailed, models.TransactionStatusRefunded, false},
		{models.TransactionStatusRefunded, models.TransactionStatusCompleted, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTransitionTerminalIsNoOp(t *testing.T) {
	store := NewMemoryStore()
	machine := &stateMachine{store: store}
	ctx := context.Background()

	w, err := store.GetOrCreateWallet(ctx, 1)
	require.NoError(t, err)
	tx := &models.Transaction{
		UserID:   1,
		WalletID: w.ID,
		Type:     models.TransactionTypePurchase,
		Status:   models.TransactionStatusFailed,
	}
	require.NoError(t, store.AppendTransaction(ctx, tx))

	got, err := machine.Transition(ctx, tx, models.TransactionStatusCompleted, "ref", "late")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, got.Status)

	wallet, err := store.WalletByUserID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, wallet.VirtualTokens)
}

func TestTransitionRejectsIllegalTarget(t *testing.T) {
	store := NewMemoryStore()
	machine := &stateMachine{store: store}
	ctx := context.Background()

	w, err := store.GetOrCreateWallet(ctx, 1)
	require.NoError(t, err)
	tx := &models.Transaction{
		UserID:   1,
		WalletID: w.ID,
		Type:     models.TransactionTypePurchase,
		Status:   models.TransactionStatusPending,
	}
	require.NoError(t, store.AppendTransaction(ctx, tx))

	_, err = machine.Transition(ctx, tx, models.TransactionStatusRefunded, "", "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

// flakyStore fails Apply a set number of times before delegating.
type flakyStore struct {
	Store
	failures int
}

func (f *flakyStore) Apply(ctx context.Context, m Mutation) error {
	if f.failures > 0 {
		f.failures--
		return fmt.Errorf("%w: connection reset", ErrStorage)
	}
	return f.Store.Apply(ctx, m)
}

func TestSettlementSurvivesStorageFaults(t *testing.T) {
	mem := NewMemoryStore()
	mem.AddBundle(&models.TokenBundle{ID: 1, Name: "Starter Pack", Tokens: 100, IsActive: true})
	flaky := &flakyStore{Store: mem, failures: 10}
	svc := NewService(flaky, NewGuard(flaky, time.Hour), WithRetry(2, time.Millisecond))
	ctx := context.Background()

	tx, _, err := svc.InitiatePurchase(ctx, 1, 1, "easypaisa")
	require.NoError(t, err)
	ref := *tx.ExternalRef

	_, err = svc.SettlePurchase(ctx, ref, models.TransactionStatusCompleted, "EP-1", "callback")
	require.ErrorIs(t, err, ErrStorage)
	assert.True(t, Retryable(err))

	// The failed commit left nothing behind.
	pending, err := mem.TransactionByExternalRef(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, pending.Status)
	wallet, err := mem.WalletByUserID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, wallet.VirtualTokens)

	// Storage recovers; the provider retry completes the settlement.
	flaky.failures = 0
	settled, err := svc.SettlePurchase(ctx, ref, models.TransactionStatusCompleted, "EP-1", "callback")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, settled.Status)
	wallet, err = mem.WalletByUserID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 100, wallet.VirtualTokens)
}
