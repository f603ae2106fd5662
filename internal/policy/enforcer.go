package policy

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"controlplane/internal/models"
	"controlplane/internal/ratelimit"
	"controlplane/internal/utils"
)

// Reason identifies why a request was denied.
type Reason string

const (
	ReasonKillSwitch          Reason = "KILL_SWITCH"
	ReasonTenantDisabled      Reason = "TENANT_DISABLED"
	ReasonPolicyMissing       Reason = "POLICY_MISSING"
	ReasonRateLimited         Reason = "RATE_LIMITED"
	ReasonTokenBudgetExceeded Reason = "TOKEN_BUDGET_EXCEEDED"
	ReasonCostBudgetExceeded  Reason = "COST_BUDGET_EXCEEDED"
)

// Decision is the outcome of an admission check.
type Decision struct {
	Admitted bool
	Reason   Reason
	Message  string
}

func deny(reason Reason, message string) Decision {
	return Decision{Reason: reason, Message: message}
}

// Enforcer runs the ordered admission checks for runtime execution and
// commits usage back to the fast-path counters afterwards.
//
// Checks short-circuit in a fixed order: global kill switch, tenant
// state, policy presence, request rate, daily token budget, daily cost
// budget. The rate check reserves its slot atomically; the day budgets
// are optimistic, comparing prior totals against the ceiling, so a
// single request may overshoot by its own usage.
type Enforcer struct {
	switches Switches
	limiter  ratelimit.Limiter
	counters *Counters
	logger   *utils.Logger
}

// NewEnforcer creates a policy enforcer.
func NewEnforcer(switches Switches, limiter ratelimit.Limiter, counters *Counters) *Enforcer {
	return &Enforcer{
		switches: switches,
		limiter:  limiter,
		counters: counters,
		logger:   utils.NewLogger("policy"),
	}
}

// Admit decides whether a request may proceed. pol may be nil when the
// tenant has no policy row; that is a denial, never a default-allow.
// Limits of 0 are unlimited for their dimension.
func (e *Enforcer) Admit(ctx context.Context, tenant *models.Tenant, pol *models.Policy) (Decision, error) {
	engaged, err := e.switches.GlobalKillSwitch(ctx)
	if err != nil {
		// Availability over strictness for the switch itself: a broken
		// settings read does not take down every tenant.
		e.logger.Error("kill switch read failed, treating as off", "error", err)
	} else if engaged {
		return deny(ReasonKillSwitch, "Service is temporarily disabled"), nil
	}

	if !tenant.Runnable() {
		return deny(ReasonTenantDisabled, "Tenant is disabled"), nil
	}

	if pol == nil {
		return deny(ReasonPolicyMissing, "Policy is required before runtime execution"), nil
	}

	tenantID := tenant.ID.String()

	allowed, err := e.limiter.Reserve(ctx, tenantID, pol.MaxRequestsPerMinute)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit check failed: %w", err)
	}
	if !allowed {
		return deny(ReasonRateLimited, "Rate limit exceeded"), nil
	}

	if pol.MaxTokensPerDay > 0 {
		used, err := e.counters.DayTokens(ctx, tenantID)
		if err != nil {
			return Decision{}, err
		}
		if used >= pol.MaxTokensPerDay {
			return deny(ReasonTokenBudgetExceeded, "Token limit exceeded"), nil
		}
	}

	if pol.MaxCostPerDay > 0 {
		spent, err := e.counters.DayCost(ctx, tenantID)
		if err != nil {
			return Decision{}, err
		}
		if spent >= pol.MaxCostPerDay {
			return deny(ReasonCostBudgetExceeded, "Cost limit exceeded"), nil
		}
	}

	return Decision{Admitted: true}, nil
}

// Record commits a completed call's usage to today's counters. The
// rate slot was already reserved at admit time.
func (e *Enforcer) Record(ctx context.Context, tenantID uuid.UUID, tokensIn, tokensOut int, cost models.MicroUSD) error {
	return e.counters.Add(ctx, tenantID.String(), int64(tokensIn)+int64(tokensOut), cost)
}
