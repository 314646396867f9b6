package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gamersarena/GamersArena/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardConcurrentReservations(t *testing.T) {
	store := NewMemoryStore()
	guard := NewGuard(store, time.Hour)
	ctx := context.Background()

	const racers = 16
	var wg sync.WaitGroup
	fresh := make([]bool, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, ok, err := guard.CheckAndReserve(ctx, "settle:abc", models.IdempotencyOutcomeApplied, nil)
			require.NoError(t, err)
			fresh[i] = ok
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, ok := range fresh {
		if ok {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one caller may win the key")
}

func TestGuardReleaseAllowsRetry(t *testing.T) {
	store := NewMemoryStore()
	guard := NewGuard(store, time.Hour)
	ctx := context.Background()

	_, fresh, err := guard.CheckAndReserve(ctx, "settle:xyz", models.IdempotencyOutcomeApplied, nil)
	require.NoError(t, err)
	require.True(t, fresh)

	require.NoError(t, guard.Release(ctx, "settle:xyz"))

	_, fresh, err = guard.CheckAndReserve(ctx, "settle:xyz", models.IdempotencyOutcomeApplied, nil)
	require.NoError(t, err)
	assert.True(t, fresh, "a released key is reservable again")
}

func TestGuardSweepPurgesExpiredKeys(t *testing.T) {
	store := NewMemoryStore()
	guard := NewGuard(store, time.Millisecond)
	ctx := context.Background()

	_, fresh, err := guard.CheckAndReserve(ctx, "settle:old", models.IdempotencyOutcomeApplied, nil)
	require.NoError(t, err)
	require.True(t, fresh)

	time.Sleep(5 * time.Millisecond)

	purged, err := guard.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, fresh, err = guard.CheckAndReserve(ctx, "settle:old", models.IdempotencyOutcomeApplied, nil)
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestGuardDefaultRetention(t *testing.T) {
	guard := NewGuard(NewMemoryStore(), 0)
	assert.Equal(t, 72*time.Hour, guard.retention)
}
