package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"controlplane/internal/models"
)

// UsageRepository persists append-only usage events
type UsageRepository struct {
	db *DB
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db *DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// Insert appends a usage event. IDs and timestamps are filled in if
// the caller left them zero.
func (r *UsageRepository) Insert(ctx context.Context, event *models.UsageEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO usage_events (
			id, tenant_id, provider_id, model, service_code,
			tokens_in, tokens_out, cost_usd, created_at
		) VALUES (
			:id, :tenant_id, :provider_id, :model, :service_code,
			:tokens_in, :tokens_out, :cost_usd, :created_at
		)`

	if _, err := r.db.conn.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("failed to insert usage event: %w", err)
	}

	return nil
}

// DailyTotals aggregates tokens and cost recorded for a tenant over a
// UTC-day window. Used to reconcile the Redis counters.
func (r *UsageRepository) DailyTotals(ctx context.Context, tenantID uuid.UUID, dayStart, dayEnd time.Time) (tokens int64, cost models.MicroUSD, err error) {
	var row struct {
		Tokens int64           `db:"tokens"`
		Cost   models.MicroUSD `db:"cost"`
	}

	query := `
		SELECT COALESCE(SUM(tokens_in + tokens_out), 0) AS tokens,
		       COALESCE(SUM(cost_usd), 0) AS cost
		FROM usage_events
		WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3`

	if err := r.db.conn.GetContext(ctx, &row, query, tenantID, dayStart, dayEnd); err != nil {
		return 0, 0, fmt.Errorf("failed to aggregate usage: %w", err)
	}

	return row.Tokens, row.Cost, nil
}
