// Package window implements a rolling-window request limiter per subject.
//
// The limiter counts admitted requests inside a trailing window (for
// example, 5 requests per trailing 24 hours). It protects a soft UX quota,
// not a financial resource, so it fails open: if the backing store is
// unreachable the subject is admitted with full remaining quota and the
// failure is logged.
//
// Check and Commit are deliberately separate operations. A caller can test
// admission without consuming it, and can commit conditionally on the
// protected action's own success. The two steps are not composed atomically:
// concurrent requests for one subject can both observe remaining > 0 and
// both commit, over-admitting by at most the number of requests in flight.
// This is an accepted tradeoff; the backing stores offer no atomic
// increment-with-expiry primitive that would close it.
package window

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"draftworks/warden/pkg/admission/storage"
)

// Policy selects the behavior when the backing store errors.
type Policy string

const (
	// PolicyAdmit fails open: store errors admit with full quota.
	PolicyAdmit Policy = "admit"

	// PolicyDeny fails closed: store errors deny.
	PolicyDeny Policy = "deny"
)

// Config holds the limiter's fixed per-deployment parameters.
type Config struct {
	// Cap is the maximum number of admitted requests inside the window.
	Cap int

	// Window is the rolling interval requests are counted over.
	Window time.Duration

	// OnStoreError is the fail-open/fail-closed policy.
	// Default: PolicyAdmit.
	OnStoreError Policy
}

// Decision is the outcome of a limiter check.
type Decision struct {
	// Allowed indicates whether the subject may proceed.
	Allowed bool

	// Remaining is the number of requests left in the window.
	Remaining int

	// ResetAt is when the oldest surviving entry expires, i.e. the earliest
	// time Remaining increases. With no entries it is now + window.
	ResetAt time.Time

	// Reason is set when the decision did not follow the normal count path
	// (store outage handled by policy).
	Reason string
}

// Limiter is a rolling-window request counter backed by a WindowStore.
// Limiter is stateless across requests; all durable state lives in the
// store.
type Limiter struct {
	store  storage.WindowStore
	config Config
	logger *slog.Logger

	// now is injectable for tests.
	now func() time.Time
}

// New creates a limiter. Cap and Window must be positive.
func New(store storage.WindowStore, cfg Config) (*Limiter, error) {
	if cfg.Cap <= 0 {
		return nil, fmt.Errorf("window limiter cap must be positive, got %d", cfg.Cap)
	}
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("window limiter window must be positive, got %v", cfg.Window)
	}
	if cfg.OnStoreError == "" {
		cfg.OnStoreError = PolicyAdmit
	}

	return &Limiter{
		store:  store,
		config: cfg,
		logger: slog.Default().With("component", "admission.window"),
		now:    time.Now,
	}, nil
}

// Check prunes expired entries and reports whether the subject has quota
// left. It does not consume quota.
//
// Store errors are routed through the configured policy and never surface
// as errors to the caller; the returned Decision carries the outcome.
func (l *Limiter) Check(ctx context.Context, subject string) Decision {
	now := l.now()
	cutoff := now.Add(-l.config.Window)

	entries, err := l.store.EntriesSince(ctx, subject, cutoff)
	if err != nil {
		return l.storeErrorDecision(subject, "check", err)
	}

	remaining := l.config.Cap - len(entries)
	if remaining < 0 {
		remaining = 0
	}

	resetAt := now.Add(l.config.Window)
	if len(entries) > 0 {
		resetAt = entries[0].Add(l.config.Window)
	}

	return Decision{
		Allowed:   remaining > 0,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

// Commit consumes one unit of quota by inserting an entry at now. Callers
// invoke it only after the protected action succeeded.
func (l *Limiter) Commit(ctx context.Context, subject string) error {
	if err := l.store.Append(ctx, subject, l.now()); err != nil {
		l.logger.Error("window commit failed", "subject", subject, "error", err)
		return fmt.Errorf("commit window entry for %q: %w", subject, err)
	}
	return nil
}

// Prune removes expired entries for all subjects. Pruning is otherwise lazy;
// this exists for housekeeping sweeps.
func (l *Limiter) Prune(ctx context.Context) (int, error) {
	return l.store.PruneBefore(ctx, l.now().Add(-l.config.Window))
}

// storeErrorDecision applies the OnStoreError policy.
func (l *Limiter) storeErrorDecision(subject, op string, err error) Decision {
	now := l.now()

	if l.config.OnStoreError == PolicyDeny {
		l.logger.Error("window store error, failing closed",
			"subject", subject, "op", op, "error", err)
		return Decision{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   now.Add(l.config.Window),
			Reason:    "window store unavailable",
		}
	}

	l.logger.Error("window store error, failing open",
		"subject", subject, "op", op, "error", err)
	return Decision{
		Allowed:   true,
		Remaining: l.config.Cap,
		ResetAt:   now.Add(l.config.Window),
		Reason:    "window store unavailable, admitted by policy",
	}
}
