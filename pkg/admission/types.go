package admission

import (
	"errors"
	"time"
)

// Strategy names an admission strategy.
type Strategy string

const (
	// StrategyWindow gates by the rolling-window request limiter.
	StrategyWindow Strategy = "window"

	// StrategyCredits gates by the credit ledger at a per-action cost.
	StrategyCredits Strategy = "credits"
)

// Route maps an action to its strategy and, for credit-gated actions, its
// cost tier. Costs are pure configuration, never computed.
type Route struct {
	Strategy Strategy
	Cost     int64
}

// Decision is the facade's admission outcome, surfaced to request handlers.
// On Allowed=false callers return a quota-exceeded response carrying
// Remaining and ResetAt; a denial is an expected outcome, not a server
// error.
type Decision struct {
	// Allowed indicates whether the caller may perform the action.
	Allowed bool

	// Remaining is the quota or balance left for the subject.
	Remaining int64

	// ResetAt is when Remaining next increases (window expiry or the daily
	// credit cliff).
	ResetAt time.Time

	// Reason is set for denials and degraded (store-outage) decisions.
	Reason string
}

// ErrUnknownAction is returned when no route exists for an action name.
var ErrUnknownAction = errors.New("unknown metered action")
