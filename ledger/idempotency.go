package ledger

import (
	"context"
	"time"

	"github.com/gamersarena/GamersArena/models"
)

// Guard deduplicates retried webhook deliveries and retried client requests.
// Keys for webhooks are the provider's payment reference; keys for
// client-initiated operations are the caller-supplied request id.
type Guard struct {
	store     Store
	retention time.Duration
}

// NewGuard returns a guard purging reservations older than retention.
// Retention only bounds table growth: replays past the window are still
// harmless because terminal transactions no-op in the state machine.
func NewGuard(store Store, retention time.Duration) *Guard {
	if retention <= 0 {
		retention = 72 * time.Hour
	}
	return &Guard{store: store, retention: retention}
}

// CheckAndReserve atomically tests and inserts key. fresh is false when the
// key was already reserved; the prior record carries the original outcome so
// the caller can short-circuit without touching the ledger.
func (g *Guard) CheckAndReserve(ctx context.Context, key, outcome string, txID *uint) (*models.IdempotencyKey, bool, error) {
	return g.store.CheckAndReserve(ctx, key, outcome, txID)
}

// Release drops a reservation so a settlement that failed midway can be retried
func (g *Guard) Release(ctx context.Context, key string) error {
	return g.store.ReleaseReservation(ctx, key)
}

// Sweep deletes reservations older than the retention window
func (g *Guard) Sweep(ctx context.Context) (int64, error) {
	return g.store.PurgeReservations(ctx, time.Now().Add(-g.retention))
}
