package models

import (
	"time"

	"github.com/google/uuid"
)

// Policy holds the per-tenant execution limits. A limit of 0 means
// unlimited for that dimension. Exactly one policy per tenant.
type Policy struct {
	ID                   uuid.UUID `db:"id"`
	TenantID             uuid.UUID `db:"tenant_id"`
	MaxRequestsPerMinute int       `db:"max_requests_per_minute"`
	MaxTokensPerDay      int64     `db:"max_tokens_per_day"`
	MaxCostPerDay        MicroUSD  `db:"max_cost_per_day_usd"`
	RedactionEnabled     bool      `db:"redaction_enabled"`
	Metadata             JSONB     `db:"metadata"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`
}
