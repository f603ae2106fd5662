package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, mr
}

func TestSlidingWindowLimiter_Reserve(t *testing.T) {
	t.Run("allows requests within limit", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		defer mr.Close()
		defer client.Close()

		limiter := NewSlidingWindowLimiter(client)
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			allowed, err := limiter.Reserve(ctx, "tenant-1", 5)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		defer mr.Close()
		defer client.Close()

		limiter := NewSlidingWindowLimiter(client)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			allowed, err := limiter.Reserve(ctx, "tenant-2", 3)
			require.NoError(t, err)
			assert.True(t, allowed)
		}

		allowed, err := limiter.Reserve(ctx, "tenant-2", 3)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("unlimited when limit is 0", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		defer mr.Close()
		defer client.Close()

		limiter := NewSlidingWindowLimiter(client)
		ctx := context.Background()

		for i := 0; i < 100; i++ {
			allowed, err := limiter.Reserve(ctx, "tenant-unlimited", 0)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
	})

	t.Run("tenants do not share windows", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		defer mr.Close()
		defer client.Close()

		limiter := NewSlidingWindowLimiter(client)
		ctx := context.Background()

		allowed, err := limiter.Reserve(ctx, "tenant-a", 1)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = limiter.Reserve(ctx, "tenant-a", 1)
		require.NoError(t, err)
		assert.False(t, allowed)

		allowed, err = limiter.Reserve(ctx, "tenant-b", 1)
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}

// With limit N and N+K concurrent reservations, exactly N succeed.
func TestSlidingWindowLimiter_ConcurrentReservations(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	limiter := NewSlidingWindowLimiter(client)
	ctx := context.Background()

	const limit = 10
	const attempts = 40

	var admitted int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			allowed, err := limiter.Reserve(ctx, "tenant-concurrent", limit)
			require.NoError(t, err)
			if allowed {
				atomic.AddInt64(&admitted, 1)
			}
		}()
	}

	close(start)
	wg.Wait()

	assert.Equal(t, int64(limit), admitted)

	usage, err := limiter.CurrentUsage(ctx, "tenant-concurrent")
	require.NoError(t, err)
	assert.Equal(t, int64(limit), usage)
}

func TestSlidingWindowLimiter_CurrentUsage(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	limiter := NewSlidingWindowLimiter(client)
	ctx := context.Background()

	usage, err := limiter.CurrentUsage(ctx, "tenant-usage")
	require.NoError(t, err)
	assert.Equal(t, int64(0), usage)

	for i := 0; i < 3; i++ {
		_, err := limiter.Reserve(ctx, "tenant-usage", 10)
		require.NoError(t, err)
	}

	usage, err = limiter.CurrentUsage(ctx, "tenant-usage")
	require.NoError(t, err)
	assert.Equal(t, int64(3), usage)
}

func TestSlidingWindowLimiter_Reset(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	limiter := NewSlidingWindowLimiter(client)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Reserve(ctx, "tenant-reset", 2)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := limiter.Reserve(ctx, "tenant-reset", 2)
	require.NoError(t, err)
	assert.False(t, allowed)

	require.NoError(t, limiter.Reset(ctx, "tenant-reset"))

	allowed, err = limiter.Reserve(ctx, "tenant-reset", 2)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestNoopLimiter(t *testing.T) {
	limiter := NewNoopLimiter()
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		allowed, err := limiter.Reserve(ctx, "any-tenant", 1)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}
