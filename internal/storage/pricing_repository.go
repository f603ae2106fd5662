package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"controlplane/internal/models"
)

// PricingRepository handles pricing model lookups
type PricingRepository struct {
	db *DB
}

// NewPricingRepository creates a new pricing repository
func NewPricingRepository(db *DB) *PricingRepository {
	return &PricingRepository{db: db}
}

// Get retrieves the enabled pricing row for a (provider type, model)
// pair. Disabled rows are treated as absent.
func (r *PricingRepository) Get(ctx context.Context, providerType, model string) (*models.PricingModel, error) {
	var pricing models.PricingModel
	query := `
		SELECT id, provider_type, model, input_cost_per_1k, output_cost_per_1k,
		       enabled, created_at, updated_at
		FROM pricing_models
		WHERE provider_type = $1 AND model = $2 AND enabled = TRUE`

	err := r.db.conn.GetContext(ctx, &pricing, query, providerType, model)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPricingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pricing model: %w", err)
	}

	return &pricing, nil
}
