package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"controlplane/internal/models"
)

// PolicyRepository handles per-tenant policy lookups
type PolicyRepository struct {
	db *DB
}

// NewPolicyRepository creates a new policy repository
func NewPolicyRepository(db *DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// GetByTenant retrieves the policy for a tenant.
// Returns ErrPolicyNotFound when the tenant has no policy row; the
// enforcer treats that as a hard denial, not a default-allow.
func (r *PolicyRepository) GetByTenant(ctx context.Context, tenantID uuid.UUID) (*models.Policy, error) {
	var policy models.Policy
	query := `
		SELECT id, tenant_id, max_requests_per_minute, max_tokens_per_day,
		       max_cost_per_day_usd, redaction_enabled, metadata,
		       created_at, updated_at
		FROM policies
		WHERE tenant_id = $1`

	err := r.db.conn.GetContext(ctx, &policy, query, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPolicyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}

	return &policy, nil
}
