package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRunLock(t *testing.T) {
	ctx := context.Background()
	store := newFakeRedis()
	lock := NewRedisRunLock(store, "magesync", nil)

	release, ok, err := lock.Acquire(ctx, "order-details", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Hour, store.ttls["magesync:lock:order-details"])

	_, ok, err = lock.Acquire(ctx, "order-details", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	_, ok, err = lock.Acquire(ctx, "customers", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "jobs lock independently")

	release()
	release()
	assert.Len(t, store.evals, 1, "release runs once")

	_, ok, err = lock.Acquire(ctx, "order-details", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisRunLock_ReleaseKeepsForeignOwner(t *testing.T) {
	ctx := context.Background()
	store := newFakeRedis()
	lock := NewRedisRunLock(store, "magesync", nil)

	release, ok, err := lock.Acquire(ctx, "products", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// the lock expired and another process took it
	store.values["magesync:lock:products"] = "someone-else"
	release()
	assert.Equal(t, "someone-else", store.values["magesync:lock:products"])
}

func TestRedisRunLock_Error(t *testing.T) {
	store := newFakeRedis()
	store.err = errors.New("timeout")
	lock := NewRedisRunLock(store, "magesync", nil)

	release, ok, err := lock.Acquire(context.Background(), "customers", time.Hour)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Nil(t, release)
}

func TestInMemoryRunLock(t *testing.T) {
	ctx := context.Background()

	t.Run("excludes a second holder until released", func(t *testing.T) {
		lock := NewInMemoryRunLock()
		release, ok, err := lock.Acquire(ctx, "order-details", time.Hour)
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, lock.Held("order-details"))

		_, ok, _ = lock.Acquire(ctx, "order-details", time.Hour)
		assert.False(t, ok)

		release()
		assert.False(t, lock.Held("order-details"))
	})

	t.Run("expired holder is replaced", func(t *testing.T) {
		lock := NewInMemoryRunLock()
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		lock.now = func() time.Time { return now }

		staleRelease, ok, _ := lock.Acquire(ctx, "products", time.Minute)
		require.True(t, ok)

		now = now.Add(2 * time.Minute)
		_, ok, _ = lock.Acquire(ctx, "products", time.Minute)
		require.True(t, ok)

		staleRelease()
		assert.True(t, lock.Held("products"), "stale release must not drop the new holder")
	})

	t.Run("only one concurrent winner", func(t *testing.T) {
		lock := NewInMemoryRunLock()
		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, ok, _ := lock.Acquire(ctx, "customers", time.Hour); ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})
}
