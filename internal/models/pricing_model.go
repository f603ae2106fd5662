package models

import (
	"time"

	"github.com/google/uuid"
)

// PricingModel is a per-1000-token price for one (provider type, model)
// pair. Amounts are numeric in the database and integer micro-USD here.
type PricingModel struct {
	ID              uuid.UUID `db:"id"`
	ProviderType    string    `db:"provider_type"`
	Model           string    `db:"model"`
	InputCostPer1K  MicroUSD  `db:"input_cost_per_1k"`
	OutputCostPer1K MicroUSD  `db:"output_cost_per_1k"`
	Enabled         bool      `db:"enabled"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}
