package recorder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"controlplane/internal/models"
	"controlplane/internal/queue"
	"controlplane/internal/utils"
)

// ExportWorker drains the audit export queue and posts batches of
// events to an external webhook. Batches that keep failing move to the
// dead letter queue.
type ExportWorker struct {
	queue       queue.Queue
	dlq         queue.DeadLetterQueue
	webhookURL  string
	client      *http.Client
	config      *queue.Config
	logger      *utils.Logger
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewExportWorker creates an export worker
func NewExportWorker(q queue.Queue, dlq queue.DeadLetterQueue, webhookURL string, config *queue.Config) *ExportWorker {
	if config == nil {
		config = queue.DefaultConfig("audit-export")
	}

	return &ExportWorker{
		queue:       q,
		dlq:         dlq,
		webhookURL:  webhookURL,
		client:      &http.Client{Timeout: 10 * time.Second},
		config:      config,
		logger:      utils.NewLogger("export-worker"),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start starts the worker goroutine
func (w *ExportWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop gracefully stops the worker
func (w *ExportWorker) Stop() error {
	close(w.stopChan)
	<-w.stoppedChan
	return nil
}

// QueueLength returns the current export queue length
func (w *ExportWorker) QueueLength(ctx context.Context) (int, error) {
	return w.queue.Length(ctx)
}

// run is the main worker loop
func (w *ExportWorker) run(ctx context.Context) {
	defer close(w.stoppedChan)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Export worker stopping")
			return
		case <-ctx.Done():
			w.logger.Info("Export worker context cancelled")
			return
		default:
			w.processBatch(ctx)
		}
	}
}

// processBatch drains up to one batch and delivers it
func (w *ExportWorker) processBatch(ctx context.Context) {
	items, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, w.config.BatchTimeout)
	if err != nil {
		w.logger.Error("Failed to dequeue audit events", "error", err)
		time.Sleep(1 * time.Second) // Back off on error
		return
	}

	if len(items) == 0 {
		return
	}

	events := make([]*models.AuditEvent, 0, len(items))
	for _, item := range items {
		event, err := unmarshalItem(item)
		if err != nil {
			w.logger.Error("Failed to unmarshal audit event", "error", err)
			continue
		}
		events = append(events, event)
	}

	if len(events) == 0 {
		return
	}

	w.logger.Debug("Exporting audit batch", "count", len(events))

	if err := w.deliverWithRetries(ctx, events); err != nil {
		w.logger.Error("Failed to export audit batch", "count", len(events), "error", err)
	}
}

// deliverWithRetries posts a batch with exponential backoff, parking
// it in the DLQ once retries are exhausted.
func (w *ExportWorker) deliverWithRetries(ctx context.Context, events []*models.AuditEvent) error {
	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := w.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
			w.logger.Debug("Retrying audit export", "attempt", attempt, "backoff", backoff)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := w.deliver(ctx, events); err != nil {
			lastErr = err
			continue
		}

		return nil
	}

	if w.dlq != nil {
		if err := w.dlq.Add(ctx, events, lastErr); err != nil {
			w.logger.Error("Failed to add batch to dead letter queue", "error", err)
		} else {
			w.logger.Warn("Audit batch moved to DLQ", "count", len(events), "error", lastErr)
		}
	}

	return fmt.Errorf("%w: %w", queue.ErrMaxRetriesExceeded, lastErr)
}

// deliver posts one batch to the webhook
func (w *ExportWorker) deliver(ctx context.Context, events []*models.AuditEvent) error {
	body, err := json.Marshal(map[string]any{"events": events})
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// unmarshalItem converts a queue item back into an audit event. Items
// from the memory queue arrive typed; Redis items arrive as JSON.
func unmarshalItem(item any) (*models.AuditEvent, error) {
	switch v := item.(type) {
	case *models.AuditEvent:
		return v, nil
	case models.AuditEvent:
		return &v, nil
	case []byte:
		var event models.AuditEvent
		if err := json.Unmarshal(v, &event); err != nil {
			return nil, err
		}
		return &event, nil
	case json.RawMessage:
		var event models.AuditEvent
		if err := json.Unmarshal(v, &event); err != nil {
			return nil, err
		}
		return &event, nil
	default:
		return nil, fmt.Errorf("unexpected item type %T", item)
	}
}
