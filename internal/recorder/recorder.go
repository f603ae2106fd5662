// Package recorder persists usage and audit events after runtime
// execution. Writes happen on the request path but failures never
// surface to the caller; a lost row is preferable to failing a request
// the provider already served.
package recorder

import (
	"context"

	"github.com/google/uuid"

	"controlplane/internal/models"
	"controlplane/internal/queue"
	"controlplane/internal/utils"
)

// UsageStore persists usage events
type UsageStore interface {
	Insert(ctx context.Context, event *models.UsageEvent) error
}

// AuditStore persists audit events
type AuditStore interface {
	Insert(ctx context.Context, event *models.AuditEvent) error
}

// Recorder writes usage and audit rows and fans audit events out to
// the export queue
type Recorder struct {
	usage       UsageStore
	audit       AuditStore
	exportQueue queue.Queue
	logger      *utils.Logger
}

// New creates a recorder. exportQueue may be nil when export is
// disabled.
func New(usage UsageStore, audit AuditStore, exportQueue queue.Queue, logger *utils.Logger) *Recorder {
	if logger == nil {
		logger = utils.NewLogger("recorder")
	}

	return &Recorder{
		usage:       usage,
		audit:       audit,
		exportQueue: exportQueue,
		logger:      logger,
	}
}

// RecordUsage inserts a usage event. Failures are logged and swallowed.
func (r *Recorder) RecordUsage(ctx context.Context, event *models.UsageEvent) {
	if err := r.usage.Insert(ctx, event); err != nil {
		r.logger.Error("Failed to record usage event",
			"tenant_id", event.TenantID,
			"provider_id", event.ProviderID,
			"error", err)
	}
}

// RecordAudit inserts an audit event and enqueues it for export.
// Failures are logged and swallowed.
func (r *Recorder) RecordAudit(ctx context.Context, tenantID uuid.UUID, action, status string, metadata models.JSONB) {
	event := &models.AuditEvent{
		TenantID: tenantID,
		Action:   action,
		Status:   status,
		Metadata: metadata,
	}

	if err := r.audit.Insert(ctx, event); err != nil {
		r.logger.Error("Failed to record audit event",
			"tenant_id", tenantID,
			"action", action,
			"error", err)
		return
	}

	if r.exportQueue == nil {
		return
	}

	if err := r.exportQueue.Enqueue(ctx, event); err != nil {
		// Export is best-effort; the durable row already exists
		r.logger.Warn("Failed to enqueue audit event for export",
			"tenant_id", tenantID,
			"action", action,
			"error", err)
	}
}
