package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryIdempotencyStore(t *testing.T) {
	ctx := context.Background()

	t.Run("first mark wins, replay is rejected", func(t *testing.T) {
		store := NewInMemoryIdempotencyStore()
		defer store.Close()

		fresh, err := store.MarkProcessed(ctx, "callback:gmo:ext-1:completed", time.Hour)
		require.NoError(t, err)
		assert.True(t, fresh)

		fresh, err = store.MarkProcessed(ctx, "callback:gmo:ext-1:completed", time.Hour)
		require.NoError(t, err)
		assert.False(t, fresh)
	})

	t.Run("released key can be marked again", func(t *testing.T) {
		store := NewInMemoryIdempotencyStore()
		defer store.Close()

		_, err := store.MarkProcessed(ctx, "callback:gmo:ext-2:failed", time.Hour)
		require.NoError(t, err)
		require.NoError(t, store.Release(ctx, "callback:gmo:ext-2:failed"))

		processed, err := store.IsProcessed(ctx, "callback:gmo:ext-2:failed")
		require.NoError(t, err)
		assert.False(t, processed)

		fresh, err := store.MarkProcessed(ctx, "callback:gmo:ext-2:failed", time.Hour)
		require.NoError(t, err)
		assert.True(t, fresh)
	})

	t.Run("expired key is treated as unprocessed", func(t *testing.T) {
		store := NewInMemoryIdempotencyStore()
		defer store.Close()

		_, err := store.MarkProcessed(ctx, "callback:paypay:ext-3:completed", time.Millisecond)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)

		processed, err := store.IsProcessed(ctx, "callback:paypay:ext-3:completed")
		require.NoError(t, err)
		assert.False(t, processed)

		fresh, err := store.MarkProcessed(ctx, "callback:paypay:ext-3:completed", time.Hour)
		require.NoError(t, err)
		assert.True(t, fresh)
	})

	t.Run("cleanup removes expired entries", func(t *testing.T) {
		store := NewInMemoryIdempotencyStore()
		defer store.Close()

		_, err := store.MarkProcessed(ctx, "a", time.Millisecond)
		require.NoError(t, err)
		_, err = store.MarkProcessed(ctx, "b", time.Hour)
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)
		store.evictExpired(time.Now())

		assert.Equal(t, 1, store.Size())
	})

	t.Run("close is safe to call twice", func(t *testing.T) {
		store := NewInMemoryIdempotencyStore()
		require.NoError(t, store.Close())
		require.NoError(t, store.Close())
	})
}
