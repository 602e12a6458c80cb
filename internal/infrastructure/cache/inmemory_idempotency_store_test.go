package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move time forward without sleeping
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T) (*InMemoryIdempotencyStore, *fakeClock) {
	t.Helper()
	store := NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store.now = clock.Now
	return store, clock
}

func TestInMemoryIdempotencyStore_Acquire(t *testing.T) {
	ctx := context.Background()

	t.Run("first acquire wins", func(t *testing.T) {
		store, _ := newTestStore(t)

		ok, err := store.Acquire(ctx, "delivery:k1", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.Acquire(ctx, "delivery:k1", time.Hour)
		require.NoError(t, err)
		assert.False(t, ok, "second acquire of a held key must fail")
	})

	t.Run("expired key can be acquired again", func(t *testing.T) {
		store, clock := newTestStore(t)

		ok, err := store.Acquire(ctx, "k", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		clock.Advance(time.Minute)

		ok, err = store.Acquire(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("released key can be acquired again", func(t *testing.T) {
		store, _ := newTestStore(t)

		_, err := store.Acquire(ctx, "k", time.Hour)
		require.NoError(t, err)
		require.NoError(t, store.Release(ctx, "k"))

		ok, err := store.Acquire(ctx, "k", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestInMemoryIdempotencyStore_Exists(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)

	held, err := store.Exists(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, held)

	_, err = store.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	held, err = store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, held)

	clock.Advance(2 * time.Minute)
	held, err = store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, held)
}

func TestInMemoryIdempotencyStore_Cleanup(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)

	_, _ = store.Acquire(ctx, "short-1", time.Second)
	_, _ = store.Acquire(ctx, "short-2", time.Second)
	_, _ = store.Acquire(ctx, "long", time.Hour)
	assert.Equal(t, 3, store.Size())

	clock.Advance(time.Minute)
	store.cleanup()

	assert.Equal(t, 1, store.Size())
	held, err := store.Exists(ctx, "long")
	require.NoError(t, err)
	assert.True(t, held)
}

func TestInMemoryIdempotencyStore_ConcurrentAcquire(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	var winners atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Acquire(ctx, "same-key", time.Hour)
			assert.NoError(t, err)
			if ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

func TestInMemoryIdempotencyStore_Close(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
