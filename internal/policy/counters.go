package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"controlplane/internal/models"
)

// counterTTL keeps day counters around long enough for reconciliation
// against usage_events before Redis expires them.
const counterTTL = 48 * time.Hour

// Counters tracks per-tenant daily token and cost totals in Redis.
// Keys roll over at midnight in the configured reference timezone,
// never the process's ambient zone.
type Counters struct {
	client   *redis.Client
	location *time.Location
}

// NewCounters creates a counter store. A nil location means UTC.
func NewCounters(client *redis.Client, location *time.Location) *Counters {
	if location == nil {
		location = time.UTC
	}
	return &Counters{client: client, location: location}
}

// DayTokens returns the tokens consumed by the tenant so far today.
func (c *Counters) DayTokens(ctx context.Context, tenantID string) (int64, error) {
	val, err := c.client.Get(ctx, c.tokensKey(tenantID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read token counter: %w", err)
	}
	return val, nil
}

// DayCost returns the cost incurred by the tenant so far today.
func (c *Counters) DayCost(ctx context.Context, tenantID string) (models.MicroUSD, error) {
	val, err := c.client.Get(ctx, c.costKey(tenantID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cost counter: %w", err)
	}
	return models.MicroUSD(val), nil
}

// Add commits tokens and cost to today's counters.
func (c *Counters) Add(ctx context.Context, tenantID string, tokens int64, cost models.MicroUSD) error {
	pipe := c.client.Pipeline()

	tokensKey := c.tokensKey(tenantID)
	costKey := c.costKey(tenantID)

	pipe.IncrBy(ctx, tokensKey, tokens)
	pipe.Expire(ctx, tokensKey, counterTTL)
	pipe.IncrBy(ctx, costKey, int64(cost))
	pipe.Expire(ctx, costKey, counterTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to commit counters: %w", err)
	}
	return nil
}

func (c *Counters) day() string {
	return time.Now().In(c.location).Format("2006-01-02")
}

func (c *Counters) tokensKey(tenantID string) string {
	return fmt.Sprintf("tokens:%s:%s", tenantID, c.day())
}

func (c *Counters) costKey(tenantID string) string {
	return fmt.Sprintf("cost:%s:%s", tenantID, c.day())
}
