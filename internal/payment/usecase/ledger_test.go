package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/payment-reconciler/internal/kvstore"
)

func TestLedger(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_AcceptsOnce", func(t *testing.T) {
		ledger := NewLedger(kvstore.NewMemoryStore(), time.Hour)

		ok, err := ledger.TryAccept(ctx, "555:payment:payment.updated")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = ledger.TryAccept(ctx, "555:payment:payment.updated")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = ledger.TryAccept(ctx, "555:payment:payment.created")
		require.NoError(t, err)
		assert.True(t, ok, "distinct actions are distinct events")
	})

	t.Run("Success_ConcurrentSingleAccept", func(t *testing.T) {
		ledger := NewLedger(kvstore.NewMemoryStore(), time.Hour)

		var accepted atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := ledger.TryAccept(ctx, "race")
				assert.NoError(t, err)
				if ok {
					accepted.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), accepted.Load())
	})

	t.Run("Success_ReleaseAllowsRetry", func(t *testing.T) {
		ledger := NewLedger(kvstore.NewMemoryStore(), time.Hour)

		ok, err := ledger.TryAccept(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, ledger.Release(ctx, "k"))

		ok, err = ledger.TryAccept(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Success_EntriesExpire", func(t *testing.T) {
		now := time.Unix(1_000, 0)
		store := kvstore.NewMemoryStore(kvstore.WithClock(func() time.Time { return now }))
		ledger := NewLedger(store, 24*time.Hour)

		ok, err := ledger.TryAccept(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)

		now = now.Add(24*time.Hour + time.Second)

		ok, err = ledger.TryAccept(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Error_StoreFailure", func(t *testing.T) {
		ledger := NewLedger(failingStore{err: errStoreDown}, time.Hour)

		_, err := ledger.TryAccept(ctx, "k")
		assert.ErrorIs(t, err, errStoreDown)

		assert.ErrorIs(t, ledger.Release(ctx, "k"), errStoreDown)
	})
}
