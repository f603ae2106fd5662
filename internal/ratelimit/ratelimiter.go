package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limiter reserves request slots in a per-tenant window.
type Limiter interface {
	// Reserve atomically claims one slot if fewer than limit requests
	// occupy the current window. limit <= 0 means unlimited.
	Reserve(ctx context.Context, tenantID string, limit int) (bool, error)
}

// NoopLimiter allows all requests.
type NoopLimiter struct{}

func NewNoopLimiter() *NoopLimiter {
	return &NoopLimiter{}
}

func (l *NoopLimiter) Reserve(ctx context.Context, tenantID string, limit int) (bool, error) {
	return true, nil
}

const windowMillis = 60_000

// reserveScript prunes the window, counts it and conditionally adds the
// new member in one atomic step, so N concurrent callers can never
// reserve more than limit slots between check and add.
var reserveScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local member = ARGV[4]

	redis.call('ZREMRANGEBYSCORE', key, 0, now - window)

	local count = redis.call('ZCARD', key)
	if count >= limit then
		return 0
	end

	redis.call('ZADD', key, now, member)
	redis.call('PEXPIRE', key, window * 2)
	return 1
`)

// SlidingWindowLimiter implements distributed rate limiting over a
// 60 second sliding window backed by a Redis sorted set per tenant.
type SlidingWindowLimiter struct {
	client *redis.Client
}

// NewSlidingWindowLimiter creates a new sliding window limiter
func NewSlidingWindowLimiter(client *redis.Client) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{client: client}
}

// Reserve claims a slot for the tenant, or reports the window is full.
func (rl *SlidingWindowLimiter) Reserve(ctx context.Context, tenantID string, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	key := windowKey(tenantID)
	now := time.Now().UnixMilli()
	member := fmt.Sprintf("%d:%s", now, uuid.NewString())

	result, err := reserveScript.Run(ctx, rl.client, []string{key}, now, windowMillis, limit, member).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit reservation failed: %w", err)
	}

	return result == 1, nil
}

// CurrentUsage returns the number of reservations in the active window.
func (rl *SlidingWindowLimiter) CurrentUsage(ctx context.Context, tenantID string) (int64, error) {
	key := windowKey(tenantID)
	now := time.Now().UnixMilli()

	if err := rl.client.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", now-windowMillis)).Err(); err != nil {
		return 0, fmt.Errorf("failed to prune window: %w", err)
	}

	count, err := rl.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count window: %w", err)
	}

	return count, nil
}

// Reset clears the window for a tenant.
func (rl *SlidingWindowLimiter) Reset(ctx context.Context, tenantID string) error {
	return rl.client.Del(ctx, windowKey(tenantID)).Err()
}

func windowKey(tenantID string) string {
	return fmt.Sprintf("rate:%s", tenantID)
}
