package ledger

import (
	"context"
	"time"

	"github.com/gamersarena/GamersArena/models"
	"github.com/shopspring/decimal"
)

// BalanceDelta describes a signed change to one wallet's balances. A commit
// rejects any delta that would drive a token counter below zero.
type BalanceDelta struct {
	WalletID      uint
	VirtualTokens int
	RewardTokens  int

	// Lifetime counter increments. Informational; never negative.
	SpentPKR        decimal.Decimal
	PurchasedTokens int
	EarnedTokens    int
	SpentTokens     int
}

// StatusUpdate moves an existing transaction from ExpectedStatus to Status.
// The store re-checks ExpectedStatus under the row lock; a mismatch aborts the
// whole commit, which is how concurrent settlements of the same transaction
// are reduced to a single balance mutation. CompletedAt and BalanceAfter are
// filled in by the store at commit time.
type StatusUpdate struct {
	TransactionID    uint
	ExpectedStatus   string
	Status           string
	PaymentReference string
	Notes            string
}

// Reservation inserts an idempotency key as part of the same commit.
type Reservation struct {
	Key           string
	Outcome       string
	TransactionID *uint
}

// Mutation is the unit of atomic change: balance deltas on one or two wallets,
// newly created (already resolved) transaction records, at most one status
// update, and at most one idempotency reservation. All of it commits or none
// of it does.
type Mutation struct {
	Deltas  []BalanceDelta
	Creates []*models.Transaction
	Update  *StatusUpdate
	Reserve *Reservation
}

// TransactionFilter narrows and pages a transaction listing.
type TransactionFilter struct {
	Type   string
	Status string
	Limit  int
	Offset int
}

// Store is the durable home of wallets, transactions and idempotency keys.
// Implementations must serialize commits per wallet: two concurrent debits
// against one wallet must not both pass the balance check on a stale read.
type Store interface {
	GetOrCreateWallet(ctx context.Context, userID uint) (*models.Wallet, error)
	WalletByUserID(ctx context.Context, userID uint) (*models.Wallet, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)

	// AppendTransaction persists a new record, typically a pending purchase.
	// Duplicate external references surface ErrConflict.
	AppendTransaction(ctx context.Context, tx *models.Transaction) error
	TransactionByID(ctx context.Context, id uint) (*models.Transaction, error)
	TransactionByExternalRef(ctx context.Context, ref string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, userID uint, f TransactionFilter) ([]models.Transaction, int64, error)
	ListPendingPurchases(ctx context.Context, olderThan time.Time) ([]models.Transaction, error)

	ActiveBundle(ctx context.Context, bundleID uint) (*models.TokenBundle, error)

	// CheckAndReserve atomically inserts the key. fresh reports whether this
	// call won the insert; when false the previously recorded key is returned.
	CheckAndReserve(ctx context.Context, key, outcome string, txID *uint) (rec *models.IdempotencyKey, fresh bool, err error)
	// ReleaseReservation drops a key so a failed settlement can be retried.
	ReleaseReservation(ctx context.Context, key string) error
	// PurgeReservations deletes keys older than the cutoff and returns the count.
	PurgeReservations(ctx context.Context, cutoff time.Time) (int64, error)

	// Apply commits a mutation atomically, locking affected wallets in
	// ascending id order.
	Apply(ctx context.Context, m Mutation) error
}
