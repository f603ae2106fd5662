package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant statuses.
const (
	TenantStatusActive    = "active"
	TenantStatusSuspended = "suspended"
	TenantStatusDisabled  = "disabled"
)

// Tenant is an isolated customer of the control plane.
type Tenant struct {
	ID         uuid.UUID `db:"id"`
	Name       string    `db:"name"`
	Status     string    `db:"status"`
	KillSwitch bool      `db:"kill_switch"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Runnable reports whether requests may execute for this tenant.
// Only active tenants without an engaged kill switch may run.
func (t *Tenant) Runnable() bool {
	return t.Status == TenantStatusActive && !t.KillSwitch
}
