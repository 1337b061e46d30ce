package admission

import (
	"context"
	"fmt"

	"draftworks/warden/pkg/admission/ledger"
	"draftworks/warden/pkg/admission/window"
)

// Manager composes the window limiter and credit ledger behind one
// check/commit contract.
//
// The Manager adds no policy of its own: it routes each action to its
// configured strategy and propagates that strategy's decision and error
// verbatim.
//
// # Example
//
//	mgr, err := admission.NewManager(limiter, creditLedger, admission.Config{
//	    Actions: map[string]admission.Route{
//	        "generate": {Strategy: admission.StrategyWindow},
//	        "refine":   {Strategy: admission.StrategyCredits, Cost: 10},
//	        "expert":   {Strategy: admission.StrategyCredits, Cost: 30},
//	    },
//	}, metrics)
//
//	decision, err := mgr.CheckAdmission(ctx, subject, "refine")
//	if decision.Allowed {
//	    // perform the protected action, then:
//	    err = mgr.CommitAdmission(ctx, subject, "refine", actionSucceeded)
//	}
type Manager struct {
	limiter *window.Limiter
	ledger  *ledger.Ledger
	routes  map[string]Route
	metrics *Metrics
}

// Config maps action names to routes.
type Config struct {
	// Actions is the route table, e.g. "generate" -> window,
	// "refine"/"expert" -> credits at tiered costs.
	Actions map[string]Route
}

// NewManager creates a manager over the given strategies. Every route must
// name a known strategy, and credit routes must carry a positive cost.
// Metrics may be nil.
func NewManager(limiter *window.Limiter, creditLedger *ledger.Ledger, cfg Config, metrics *Metrics) (*Manager, error) {
	if len(cfg.Actions) == 0 {
		return nil, fmt.Errorf("admission config has no actions")
	}

	for action, route := range cfg.Actions {
		switch route.Strategy {
		case StrategyWindow:
			if limiter == nil {
				return nil, fmt.Errorf("action %q routes to the window strategy but no limiter was provided", action)
			}
		case StrategyCredits:
			if creditLedger == nil {
				return nil, fmt.Errorf("action %q routes to the credits strategy but no ledger was provided", action)
			}
			if route.Cost <= 0 {
				return nil, fmt.Errorf("action %q must have a positive credit cost, got %d", action, route.Cost)
			}
		default:
			return nil, fmt.Errorf("action %q has unknown strategy %q", action, route.Strategy)
		}
	}

	return &Manager{
		limiter: limiter,
		ledger:  creditLedger,
		routes:  cfg.Actions,
		metrics: metrics,
	}, nil
}

// CheckAdmission reports whether the subject may perform the action. It
// consumes nothing; callers commit after the protected action succeeds.
func (m *Manager) CheckAdmission(ctx context.Context, subject, action string) (*Decision, error) {
	route, ok := m.routes[action]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	var decision *Decision
	switch route.Strategy {
	case StrategyWindow:
		d := m.limiter.Check(ctx, subject)
		decision = &Decision{
			Allowed:   d.Allowed,
			Remaining: int64(d.Remaining),
			ResetAt:   d.ResetAt,
			Reason:    d.Reason,
		}
	case StrategyCredits:
		d := m.ledger.CheckAndReserve(ctx, subject, route.Cost)
		decision = &Decision{
			Allowed:   d.Allowed,
			Remaining: d.Remaining,
			ResetAt:   d.ResetAt,
			Reason:    d.Reason,
		}
	}

	if decision.Reason != "" {
		m.metrics.recordDegraded(route.Strategy, decision.Allowed)
	}
	m.metrics.recordCheck(action, route.Strategy, decision.Allowed)

	return decision, nil
}

// CommitAdmission consumes quota for an admitted action. When success is
// false nothing is consumed: both strategies charge only for protected
// actions that actually completed.
//
// For credit-gated actions the balance is atomically re-validated at commit
// time; ErrInsufficientBalance from the ledger propagates verbatim.
func (m *Manager) CommitAdmission(ctx context.Context, subject, action string, success bool) error {
	route, ok := m.routes[action]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if !success {
		return nil
	}

	var err error
	switch route.Strategy {
	case StrategyWindow:
		err = m.limiter.Commit(ctx, subject)
	case StrategyCredits:
		_, err = m.ledger.CommitSpend(ctx, subject, route.Cost)
	}

	m.metrics.recordCommit(action, route.Strategy, err == nil)
	return err
}

// Routes returns a copy of the action route table.
func (m *Manager) Routes() map[string]Route {
	out := make(map[string]Route, len(m.routes))
	for k, v := range m.routes {
		out[k] = v
	}
	return out
}
