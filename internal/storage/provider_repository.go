package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"controlplane/internal/models"
)

// ProviderRepository handles provider configuration lookups
type ProviderRepository struct {
	db *DB
}

// NewProviderRepository creates a new provider repository
func NewProviderRepository(db *DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

// GetForTenant retrieves a provider by ID, scoped to the owning tenant.
// A provider belonging to a different tenant is indistinguishable from
// a missing one.
func (r *ProviderRepository) GetForTenant(ctx context.Context, id, tenantID uuid.UUID) (*models.Provider, error) {
	var provider models.Provider
	query := `
		SELECT id, tenant_id, provider_type, display_name,
		       encrypted_credentials, config, enabled, created_at, updated_at
		FROM providers
		WHERE id = $1 AND tenant_id = $2`

	err := r.db.conn.GetContext(ctx, &provider, query, id, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProviderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}

	return &provider, nil
}

// ListForTenant returns all providers configured for a tenant
func (r *ProviderRepository) ListForTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Provider, error) {
	var providers []models.Provider
	query := `
		SELECT id, tenant_id, provider_type, display_name,
		       encrypted_credentials, config, enabled, created_at, updated_at
		FROM providers
		WHERE tenant_id = $1
		ORDER BY created_at`

	if err := r.db.conn.SelectContext(ctx, &providers, query, tenantID); err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}

	return providers, nil
}

// UpdateCredentials replaces the encrypted credential blob for a provider
func (r *ProviderRepository) UpdateCredentials(ctx context.Context, id uuid.UUID, encrypted string) error {
	query := `
		UPDATE providers
		SET encrypted_credentials = $2, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.conn.ExecContext(ctx, query, id, encrypted)
	if err != nil {
		return fmt.Errorf("failed to update provider credentials: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return ErrProviderNotFound
	}

	return nil
}
