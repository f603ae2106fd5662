package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"controlplane/internal/models"
)

// AuditRepository persists append-only audit events
type AuditRepository struct {
	db *DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert appends an audit event
func (r *AuditRepository) Insert(ctx context.Context, event *models.AuditEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO audit_events (id, tenant_id, action, status, metadata, created_at)
		VALUES (:id, :tenant_id, :action, :status, :metadata, :created_at)`

	if _, err := r.db.conn.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	return nil
}

// ListByTenant returns the most recent audit events for a tenant
func (r *AuditRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	var events []models.AuditEvent
	query := `
		SELECT id, tenant_id, action, status, metadata, created_at
		FROM audit_events
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	if err := r.db.conn.SelectContext(ctx, &events, query, tenantID, limit); err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}

	return events, nil
}
