package retry

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTokenStore_Acquire(t *testing.T) {
	ctx := context.Background()

	t.Run("second acquire fails while token is held", func(t *testing.T) {
		store := NewMemoryTokenStore()

		acquired, err := store.Acquire(ctx, "calendar-sync:1", time.Minute)
		require.NoError(t, err)
		assert.True(t, acquired)

		acquired, err = store.Acquire(ctx, "calendar-sync:1", time.Minute)
		require.NoError(t, err)
		assert.False(t, acquired)
	})

	t.Run("expired token can be acquired again", func(t *testing.T) {
		store := NewMemoryTokenStore()
		now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
		store.now = func() time.Time { return now }

		acquired, err := store.Acquire(ctx, "outbound:1", 30*time.Second)
		require.NoError(t, err)
		assert.True(t, acquired)

		now = now.Add(31 * time.Second)

		acquired, err = store.Acquire(ctx, "outbound:1", 30*time.Second)
		require.NoError(t, err)
		assert.True(t, acquired)
	})

	t.Run("release frees the token", func(t *testing.T) {
		store := NewMemoryTokenStore()

		_, err := store.Acquire(ctx, "calendar-sync:2", time.Minute)
		require.NoError(t, err)
		require.NoError(t, store.Release(ctx, "calendar-sync:2"))

		acquired, err := store.Acquire(ctx, "calendar-sync:2", time.Minute)
		require.NoError(t, err)
		assert.True(t, acquired)
	})

	t.Run("keys are independent", func(t *testing.T) {
		store := NewMemoryTokenStore()

		first, err := store.Acquire(ctx, "a", time.Minute)
		require.NoError(t, err)
		second, err := store.Acquire(ctx, "b", time.Minute)
		require.NoError(t, err)

		assert.True(t, first)
		assert.True(t, second)
	})
}

func TestMemoryTokenStore_ConcurrentAcquire(t *testing.T) {
	store := NewMemoryTokenStore()
	ctx := context.Background()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acquired, err := store.Acquire(ctx, "calendar-sync:race", time.Minute)
			if err == nil && acquired {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
}

func TestRedisTokenStore_ConnectionError(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer func() { _ = client.Close() }()

	store := NewRedisTokenStore(client, "clinicops:retry:")

	acquired, err := store.Acquire(context.Background(), "calendar-sync:1", time.Minute)
	assert.Error(t, err)
	assert.False(t, acquired)
	assert.Contains(t, err.Error(), "failed to acquire retry token calendar-sync:1")

	err = store.Release(context.Background(), "calendar-sync:1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to release retry token calendar-sync:1")
}
