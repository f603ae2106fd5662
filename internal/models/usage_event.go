package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// UsageEvent is one append-only record of tokens consumed and cost
// incurred by a successful provider invocation.
type UsageEvent struct {
	ID          uuid.UUID      `db:"id"`
	TenantID    uuid.UUID      `db:"tenant_id"`
	ProviderID  uuid.UUID      `db:"provider_id"`
	Model       string         `db:"model"`
	ServiceCode sql.NullString `db:"service_code"`
	TokensIn    int            `db:"tokens_in"`
	TokensOut   int            `db:"tokens_out"`
	Cost        MicroUSD       `db:"cost_usd"`
	CreatedAt   time.Time      `db:"created_at"`
}
