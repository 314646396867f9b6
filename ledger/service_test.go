package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gamersarena/GamersArena/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	store.AddBundle(&models.TokenBundle{
		ID:       1,
		Name:     "Starter Pack",
		Tokens:   100,
		PricePKR: decimal.NewFromInt(1399),
		PriceUSD: decimal.NewFromInt(5),
		IsActive: true,
	})
	store.AddUser(&models.User{Model: gorm.Model{ID: 1}, Email: "alice@example.com", Username: "alice"})
	store.AddUser(&models.User{Model: gorm.Model{ID: 2}, Email: "bob@example.com", Username: "bob"})
	guard := NewGuard(store, time.Hour)
	svc := NewService(store, guard, WithRetry(2, time.Millisecond))
	return svc, store
}

func TestPurchaseSettlementCreditsWallet(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tx, bundle, err := svc.InitiatePurchase(ctx, 1, 1, "easypaisa")
	require.NoError(t, err)
	require.NotNil(t, tx.ExternalRef)
	assert.Equal(t, models.TransactionStatusPending, tx.Status)
	assert.Equal(t, 100, tx.TokenAmount)
	assert.Equal(t, "Starter Pack", bundle.Name)

	settled, err := svc.SettlePurchase(ctx, *tx.ExternalRef, models.TransactionStatusCompleted, "EP-123", "provider callback")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, settled.Status)
	assert.Equal(t, "EP-123", settled.PaymentReference)
	require.NotNil(t, settled.CompletedAt)
	require.NotNil(t, settled.BalanceAfter)
	assert.Equal(t, 100, *settled.BalanceAfter)

	wallet, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 100, wallet.VirtualTokens)
	assert.Equal(t, 100, wallet.TotalTokensPurchased)
	assert.True(t, wallet.TotalSpentPKR.Equal(decimal.NewFromInt(1399)),
		"expected 1399 PKR spent, got %s", wallet.TotalSpentPKR)
}

func TestInitiatePurchaseUnknownBundle(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.InitiatePurchase(context.Background(), 1, 99, "easypaisa")
	assert.ErrorIs(t, err, ErrInvalidBundle)
}

func TestFailedSettlementCreditsNothing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tx, _, err := svc.InitiatePurchase(ctx, 1, 1, "jazzcash")
	require.NoError(t, err)

	settled, err := svc.SettlePurchase(ctx, *tx.ExternalRef, models.TransactionStatusFailed, "JC-1", "declined")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, settled.Status)

	wallet, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, wallet.VirtualTokens)
	assert.True(t, wallet.TotalSpentPKR.IsZero())
}

func TestSettleUnknownReference(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SettlePurchase(context.Background(), "no-such-ref", models.TransactionStatusCompleted, "", "")
	assert.ErrorIs(t, err, ErrUnknownReference)
}

func TestEntryDebitInsufficientBalance(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AdminAdjust(ctx, 1, 50, models.TokenTypeVirtual, "seed")
	require.NoError(t, err)

	_, err = svc.DebitForEntry(ctx, 1, 7, 100, "Entry: Friday Night Cup", "")
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	wallet, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 50, wallet.VirtualTokens, "failed debit must leave the balance untouched")

	// No entry record may exist for the refused debit.
	history, _, err := svc.Transactions(ctx, 1, TransactionFilter{Type: models.TransactionTypeTournamentEntry})
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestEntryDebitRecordsSpend(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AdminAdjust(ctx, 1, 500, models.TokenTypeVirtual, "seed")
	require.NoError(t, err)

	tx, err := svc.DebitForEntry(ctx, 1, 7, 100, "Entry: Friday Night Cup", "")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, tx.Status)
	require.NotNil(t, tx.TournamentID)
	assert.Equal(t, uint(7), *tx.TournamentID)

	wallet, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 400, wallet.VirtualTokens)
	assert.Equal(t, 100, wallet.TotalTokensSpent)
}

func TestEntryDebitReplaySameRequestID(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AdminAdjust(ctx, 1, 500, models.TokenTypeVirtual, "seed")
	require.NoError(t, err)

	first, err := svc.DebitForEntry(ctx, 1, 7, 100, "Entry: Friday Night Cup", "req-abc")
	require.NoError(t, err)

	second, err := svc.DebitForEntry(ctx, 1, 7, 100, "Entry: Friday Night Cup", "req-abc")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "a replayed request returns the original record")

	wallet, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 400, wallet.VirtualTokens, "the fee is taken once")
}

func TestRewardCreditNeverRefused(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// User 2 has no wallet yet; the credit creates it.
	tx, err := svc.CreditReward(ctx, 2, 7, 250, "1st place")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeTournamentPrize, tx.Type)
	assert.Equal(t, models.TokenTypeReward, tx.TokenType)

	wallet, err := svc.Balance(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 250, wallet.RewardTokens)
	assert.Equal(t, 250, wallet.TotalTokensEarned)
}

func TestTransferConservation(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreditReward(ctx, 1, 7, 200, "prize")
	require.NoError(t, err)

	res, err := svc.Transfer(ctx, 1, "bob@example.com", 150, "")
	require.NoError(t, err)
	require.NotNil(t, res.Out)
	require.NotNil(t, res.In)

	from, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	to, err := svc.Balance(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 50, from.RewardTokens)
	assert.Equal(t, 150, to.RewardTokens)

	assert.Equal(t, models.TransactionTypeTransferOut, res.Out.Type)
	assert.Equal(t, models.TransactionTypeTransferIn, res.In.Type)
	require.NotNil(t, res.Out.TransferID)
	require.NotNil(t, res.In.TransferID)
	assert.Equal(t, *res.Out.TransferID, *res.In.TransferID, "both halves share one transfer id")

	// Both records must be persisted.
	out, err := store.TransactionByID(ctx, res.Out.ID)
	require.NoError(t, err)
	in, err := store.TransactionByID(ctx, res.In.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, out.Status)
	assert.Equal(t, models.TransactionStatusCompleted, in.Status)
}

func TestTransferOnlyRewardTokens(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// Plenty of virtual tokens, zero reward tokens.
	_, err := svc.AdminAdjust(ctx, 1, 1000, models.TokenTypeVirtual, "seed")
	require.NoError(t, err)

	_, err = svc.Transfer(ctx, 1, "bob@example.com", 100, "")
	assert.ErrorIs(t, err, ErrInsufficientBalance, "virtual tokens are not transferable")
}

func TestTransferRejectsBadRecipients(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreditReward(ctx, 1, 7, 100, "prize")
	require.NoError(t, err)

	_, err = svc.Transfer(ctx, 1, "ghost@example.com", 10, "")
	assert.ErrorIs(t, err, ErrRecipientNotFound)

	_, err = svc.Transfer(ctx, 1, "alice@example.com", 10, "")
	assert.ErrorIs(t, err, ErrSelfTransfer)

	_, err = svc.Transfer(ctx, 1, "bob@example.com", 0, "")
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestConcurrentDuplicateSettlements(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tx, _, err := svc.InitiatePurchase(ctx, 1, 1, "easypaisa")
	require.NoError(t, err)
	ref := *tx.ExternalRef

	const deliveries = 8
	var wg sync.WaitGroup
	errs := make([]error, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.SettlePurchase(ctx, ref, models.TransactionStatusCompleted, "EP-dup", "callback")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "delivery %d", i)
	}

	wallet, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 100, wallet.VirtualTokens, "duplicate deliveries must credit exactly once")

	final, err := svc.Transaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, final.Status)
}

func TestRefundOnceOnly(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tx, _, err := svc.InitiatePurchase(ctx, 1, 1, "easypaisa")
	require.NoError(t, err)
	settled, err := svc.SettlePurchase(ctx, *tx.ExternalRef, models.TransactionStatusCompleted, "EP-1", "callback")
	require.NoError(t, err)

	refunded, err := svc.Refund(ctx, settled.ID, "customer complaint")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusRefunded, refunded.Status)

	wallet, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, wallet.VirtualTokens, "refund takes the credited tokens back")

	_, err = svc.Refund(ctx, settled.ID, "again")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRefundRequiresCompleted(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tx, _, err := svc.InitiatePurchase(ctx, 1, 1, "easypaisa")
	require.NoError(t, err)

	_, err = svc.Refund(ctx, tx.ID, "too early")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestLateCallbackAfterTimeoutSweep(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tx, _, err := svc.InitiatePurchase(ctx, 1, 1, "jazzcash")
	require.NoError(t, err)

	n, err := svc.FailStalePurchases(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The provider's success callback arrives after the sweep. The record is
	// terminal, so the delivery is acknowledged without crediting anything.
	settled, err := svc.SettlePurchase(ctx, *tx.ExternalRef, models.TransactionStatusCompleted, "JC-late", "callback")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, settled.Status)

	wallet, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, wallet.VirtualTokens)
}

func TestConcurrentEntryDebitsNeverOverdraw(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AdminAdjust(ctx, 1, 100, models.TokenTypeVirtual, "seed")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.DebitForEntry(ctx, 1, uint(10+i), 60, "entry", "")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientBalance)
		}
	}
	assert.Equal(t, 1, succeeded)

	wallet, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 40, wallet.VirtualTokens)
	assert.GreaterOrEqual(t, wallet.VirtualTokens, 0)
}

func TestAdminAdjustCannotOverdraw(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AdminAdjust(ctx, 1, 30, models.TokenTypeReward, "seed")
	require.NoError(t, err)

	_, err = svc.AdminAdjust(ctx, 1, -50, models.TokenTypeReward, "clawback")
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	wallet, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 30, wallet.RewardTokens)
}

func TestAttachPaymentReferenceBindsPendingOnly(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	tx, _, err := svc.InitiatePurchase(ctx, 1, 1, "razorpay")
	require.NoError(t, err)

	require.NoError(t, svc.AttachPaymentReference(ctx, tx.ID, "order_abc123"))
	reloaded, err := store.TransactionByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, reloaded.Status)
	assert.Equal(t, "order_abc123", reloaded.PaymentReference)

	_, err = svc.SettlePurchase(ctx, *tx.ExternalRef, models.TransactionStatusCompleted, "pay_abc123", "checkout verified")
	require.NoError(t, err)

	// A settled purchase keeps the order it was bound to.
	err = svc.AttachPaymentReference(ctx, tx.ID, "order_other_9")
	assert.ErrorIs(t, err, errStaleStatus)
	reloaded, err = store.TransactionByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "pay_abc123", reloaded.PaymentReference)
}
