package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit outcome statuses.
const (
	AuditStatusSuccess = "success"
	AuditStatusDenied  = "denied"
	AuditStatusError   = "error"
)

// AuditEvent records the outcome of one control-plane action.
// Metadata never carries prompt or response bodies, only identifiers
// and decision context.
type AuditEvent struct {
	ID        uuid.UUID `db:"id"`
	TenantID  uuid.UUID `db:"tenant_id"`
	Action    string    `db:"action"`
	Status    string    `db:"status"`
	Metadata  JSONB     `db:"metadata"`
	CreatedAt time.Time `db:"created_at"`
}
