package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()
	ctx := context.Background()

	t.Run("first claim wins", func(t *testing.T) {
		ok, err := store.MarkProcessed(ctx, "stock:event-1", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.MarkProcessed(ctx, "stock:event-1", time.Hour)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("expired claim can be taken again", func(t *testing.T) {
		ok, err := store.MarkProcessed(ctx, "stock:event-2", 10*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)

		time.Sleep(20 * time.Millisecond)

		ok, err = store.MarkProcessed(ctx, "stock:event-2", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestInMemoryIdempotencyStore_IsProcessed(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()
	ctx := context.Background()

	processed, err := store.IsProcessed(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, processed)

	_, err = store.MarkProcessed(ctx, "present", time.Hour)
	require.NoError(t, err)
	processed, err = store.IsProcessed(ctx, "present")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestInMemoryIdempotencyStore_Release(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()
	ctx := context.Background()

	_, err := store.MarkProcessed(ctx, "retry-me", time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "retry-me"))

	ok, err := store.MarkProcessed(ctx, "retry-me", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "a released key is claimable again")

	assert.NoError(t, store.Release(ctx, "never-claimed"))
}

func TestInMemoryIdempotencyStore_ConcurrentClaims(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()
	ctx := context.Background()

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := store.MarkProcessed(ctx, "contended", time.Hour); ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

func TestInMemoryIdempotencyStore_Sweeper(t *testing.T) {
	store := newInMemoryIdempotencyStore(10 * time.Millisecond)
	defer store.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.MarkProcessed(ctx, fmt.Sprintf("short-%d", i), time.Millisecond)
		require.NoError(t, err)
	}
	_, err := store.MarkProcessed(ctx, "long", time.Hour)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return store.Size() == 1 }, time.Second, 10*time.Millisecond)
}

func TestInMemoryIdempotencyStore_CloseTwice(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}
