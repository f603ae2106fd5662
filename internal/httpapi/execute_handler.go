package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"controlplane/internal/models"
	"controlplane/internal/policy"
	"controlplane/internal/pricing"
	"controlplane/internal/providers"
	"controlplane/internal/storage"
	"controlplane/internal/utils"
)

const actionRuntimeExecute = "runtime.execute"

// TenantStore resolves tenants
type TenantStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
}

// ProviderStore resolves tenant-scoped provider configurations
type ProviderStore interface {
	GetForTenant(ctx context.Context, id, tenantID uuid.UUID) (*models.Provider, error)
}

// PolicyStore resolves tenant policies
type PolicyStore interface {
	GetByTenant(ctx context.Context, tenantID uuid.UUID) (*models.Policy, error)
}

// AdapterResolver maps provider type strings to adapters
type AdapterResolver interface {
	Resolve(providerType string) (providers.Adapter, bool)
}

// CredentialDecrypter opens encrypted provider credentials
type CredentialDecrypter interface {
	DecryptJSON(versioned string) (map[string]any, error)
}

// Redactor strips sensitive values from payloads
type Redactor interface {
	Redact(payload map[string]any) map[string]any
}

// CostCalculator prices an invocation
type CostCalculator interface {
	Cost(ctx context.Context, providerType, model string, tokensIn, tokensOut int) (pricing.Cost, error)
}

// AdmissionController runs the ordered policy checks and the usage
// counter commit
type AdmissionController interface {
	Admit(ctx context.Context, tenant *models.Tenant, pol *models.Policy) (policy.Decision, error)
	Record(ctx context.Context, tenantID uuid.UUID, tokensIn, tokensOut int, cost models.MicroUSD) error
}

// EventRecorder persists usage and audit events
type EventRecorder interface {
	RecordUsage(ctx context.Context, event *models.UsageEvent)
	RecordAudit(ctx context.Context, tenantID uuid.UUID, action, status string, metadata models.JSONB)
}

// executeRequest is the POST /runtime/execute body
type executeRequest struct {
	ProviderID  string         `json:"providerId"`
	Model       string         `json:"model"`
	Payload     map[string]any `json:"payload"`
	ServiceCode string         `json:"serviceCode,omitempty"`
	RequestID   string         `json:"requestId,omitempty"`
}

// executeResponse is the 200 body
type executeResponse struct {
	RequestID string         `json:"requestId"`
	Output    map[string]any `json:"output"`
	TokensIn  int            `json:"tokensIn"`
	TokensOut int            `json:"tokensOut"`
	CostUSD   float64        `json:"costUsd"`
}

// handleExecute runs one model invocation through the full pipeline.
//
// Flow:
//  1. Validate method and headers
//  2. Decode and validate body
//  3. Resolve tenant, provider and policy
//  4. Admission checks (kill switch, tenant state, policy, rate, budgets)
//  5. Resolve adapter, decrypt credentials
//  6. Redact payload if the policy asks for it
//  7. Invoke the provider
//  8. Price, record counters, usage and audit
//  9. Return normalized response
//
// Resolution runs before admission, so a request naming a nonexistent
// provider never consumes a rate-limit slot. Exactly one audit event is
// written per attributable outcome: resolution failures audit as
// "error", admission denials as "denied". Requests rejected during
// header or body validation leave no trace.
func (d *Dependencies) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx := r.Context()

	tenantHeader := r.Header.Get("x-tenant-id")
	if tenantHeader == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Missing x-tenant-id header")
		return
	}
	tenantID, err := uuid.Parse(tenantHeader)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid x-tenant-id header")
		return
	}

	// Verification belongs to the auth layer in front of the gateway;
	// presence is still required here.
	if r.Header.Get("x-api-key") == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Missing x-api-key header")
		return
	}

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	providerID, err := uuid.Parse(req.ProviderID)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid providerId")
		return
	}
	if req.Model == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Missing 'model' field")
		return
	}
	if req.Payload == nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Missing 'payload' field")
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	tenant, err := d.Tenants.GetByID(ctx, tenantID)
	if errors.Is(err, storage.ErrTenantNotFound) {
		d.Recorder.RecordAudit(ctx, tenantID, actionRuntimeExecute, models.AuditStatusError, models.JSONB{
			"request_id": req.RequestID,
			"reason":     "TENANT_NOT_FOUND",
		})
		utils.RespondWithError(w, http.StatusNotFound, "Tenant not found")
		return
	}
	if err != nil {
		d.Logger.Error("Tenant lookup failed", "tenant_id", tenantID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	provider, err := d.Providers.GetForTenant(ctx, providerID, tenantID)
	if errors.Is(err, storage.ErrProviderNotFound) || (err == nil && !provider.Enabled) {
		d.Recorder.RecordAudit(ctx, tenantID, actionRuntimeExecute, models.AuditStatusError, models.JSONB{
			"request_id":  req.RequestID,
			"reason":      "PROVIDER_NOT_FOUND",
			"provider_id": providerID.String(),
		})
		utils.RespondWithError(w, http.StatusNotFound, "Provider not found or disabled")
		return
	}
	if err != nil {
		d.Logger.Error("Provider lookup failed", "provider_id", providerID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	pol, err := d.Policies.GetByTenant(ctx, tenantID)
	if errors.Is(err, storage.ErrPolicyNotFound) {
		pol = nil
	} else if err != nil {
		d.Logger.Error("Policy lookup failed", "tenant_id", tenantID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	decision, err := d.Enforcer.Admit(ctx, tenant, pol)
	if err != nil {
		d.Logger.Error("Admission check failed", "tenant_id", tenantID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	if !decision.Admitted {
		d.Recorder.RecordAudit(ctx, tenantID, actionRuntimeExecute, models.AuditStatusDenied, models.JSONB{
			"request_id": req.RequestID,
			"reason":     string(decision.Reason),
			"model":      req.Model,
		})
		utils.RespondWithError(w, denialStatus(decision.Reason), decision.Message)
		return
	}

	adapter, known := d.Adapters.Resolve(provider.ProviderType)
	if !known {
		d.Logger.Warn("Unknown provider type, using openai-compatible adapter",
			"provider_id", providerID,
			"provider_type", provider.ProviderType)
	}

	creds, err := d.Decrypter.DecryptJSON(provider.EncryptedCredentials)
	if err != nil {
		d.Logger.Error("Credential decryption failed", "provider_id", providerID, "error", err)
		d.recordFailure(ctx, tenantID, req, provider, known, "credential decryption failed")
		utils.RespondWithError(w, http.StatusBadGateway, "Provider invocation failed")
		return
	}

	payload := req.Payload
	if pol.RedactionEnabled {
		payload = d.Redactor.Redact(payload)
	}

	result, err := adapter.Invoke(ctx, creds, req.Model, payload)
	if err != nil {
		d.Logger.Error("Provider invocation failed",
			"provider_id", providerID,
			"model", req.Model,
			"error", err)
		d.recordFailure(ctx, tenantID, req, provider, known, err.Error())
		utils.RespondWithError(w, http.StatusBadGateway, invocationFailureMessage(err))
		return
	}

	cost, err := d.Pricing.Cost(ctx, provider.ProviderType, req.Model, result.TokensIn, result.TokensOut)
	if err != nil {
		// Never fail a served request over a pricing read
		d.Logger.Error("Pricing failed, recording zero cost", "model", req.Model, "error", err)
		cost = pricing.Cost{Unpriced: true}
	}

	if err := d.Enforcer.Record(ctx, tenantID, result.TokensIn, result.TokensOut, cost.MicroUSD); err != nil {
		d.Logger.Error("Failed to update day counters", "tenant_id", tenantID, "error", err)
	}

	usage := &models.UsageEvent{
		TenantID:   tenantID,
		ProviderID: provider.ID,
		Model:      req.Model,
		TokensIn:   result.TokensIn,
		TokensOut:  result.TokensOut,
		Cost:       cost.MicroUSD,
	}
	if req.ServiceCode != "" {
		usage.ServiceCode = sql.NullString{String: req.ServiceCode, Valid: true}
	}
	d.Recorder.RecordUsage(ctx, usage)

	metadata := models.JSONB{
		"request_id":  req.RequestID,
		"provider_id": provider.ID.String(),
		"model":       req.Model,
		"tokens_in":   result.TokensIn,
		"tokens_out":  result.TokensOut,
		"cost_usd":    cost.USD(),
	}
	if !known {
		metadata["unknown_provider_type"] = provider.ProviderType
	}
	if cost.Unpriced {
		metadata["unpriced_model"] = true
	}
	d.Recorder.RecordAudit(ctx, tenantID, actionRuntimeExecute, models.AuditStatusSuccess, metadata)

	utils.RespondWithJSON(w, http.StatusOK, executeResponse{
		RequestID: req.RequestID,
		Output:    result.Output,
		TokensIn:  result.TokensIn,
		TokensOut: result.TokensOut,
		CostUSD:   cost.USD(),
	})
}

// recordFailure writes the single "error" audit row for a failed
// invocation. No usage row and no counter updates happen on failure.
func (d *Dependencies) recordFailure(ctx context.Context, tenantID uuid.UUID, req executeRequest, provider *models.Provider, known bool, reason string) {
	metadata := models.JSONB{
		"request_id":  req.RequestID,
		"provider_id": provider.ID.String(),
		"model":       req.Model,
		"error":       reason,
	}
	if !known {
		metadata["unknown_provider_type"] = provider.ProviderType
	}
	d.Recorder.RecordAudit(ctx, tenantID, actionRuntimeExecute, models.AuditStatusError, metadata)
}

// invocationFailureMessage builds the 502 body for a failed invocation.
// Typed provider errors carry the upstream status and a truncated reason,
// so callers can tell a transient outage from a bad configuration.
// Anything else stays generic.
func invocationFailureMessage(err error) string {
	var provErr *providers.ProviderError
	if errors.As(err, &provErr) {
		return "Provider invocation failed: " + provErr.Error()
	}
	var cfgErr *providers.ConfigError
	if errors.As(err, &cfgErr) {
		return "Provider invocation failed: " + cfgErr.Error()
	}
	return "Provider invocation failed"
}

// denialStatus maps denial reasons to HTTP statuses.
func denialStatus(reason policy.Reason) int {
	if reason == policy.ReasonRateLimited {
		return http.StatusTooManyRequests
	}
	return http.StatusForbidden
}

// handleHealth reports process liveness and dependency health
func (d *Dependencies) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	status := map[string]any{"status": "ok"}
	code := http.StatusOK

	if d.Health != nil {
		if err := d.Health(r.Context()); err != nil {
			status["status"] = "degraded"
			status["error"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}

	utils.RespondWithJSON(w, code, status)
}
