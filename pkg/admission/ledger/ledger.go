package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Policy selects the behavior when the backing store errors.
type Policy string

const (
	// PolicyAdmit fails open: store errors admit.
	PolicyAdmit Policy = "admit"

	// PolicyDeny fails closed: store errors deny. This is the ledger's
	// default; credits are a durable resource and silently admitting on
	// infrastructure failure risks balance drift and abuse.
	PolicyDeny Policy = "deny"
)

// SystemActor is recorded on transactions not initiated by an admin, such
// as spends and daily resets.
const SystemActor = "system"

// Config holds the ledger's fixed per-deployment parameters.
type Config struct {
	// DailyCap is the balance every subject is reset to at the daily cliff.
	DailyCap int64

	// ResetHour is the wall-clock hour (0-23) of the daily reset. The reset
	// is a calendar-time cliff, not a rolling window.
	ResetHour int

	// OnStoreError is the fail-open/fail-closed policy.
	// Default: PolicyDeny.
	OnStoreError Policy
}

// Decision is the outcome of a credit check.
type Decision struct {
	// Allowed indicates whether the subject can afford the action.
	Allowed bool

	// Remaining is the subject's current balance.
	Remaining int64

	// ResetAt is the next daily reset cliff.
	ResetAt time.Time

	// Reason is set when the decision did not follow the normal balance
	// path (store outage handled by policy).
	Reason string
}

// Ledger applies the credit rules over a Store. Ledger is stateless across
// requests; all durable state lives in the store.
type Ledger struct {
	store  Store
	config Config
	logger *slog.Logger

	// now is injectable for tests.
	now func() time.Time
}

// New creates a ledger. DailyCap must be positive and ResetHour in 0-23.
func New(store Store, cfg Config) (*Ledger, error) {
	if cfg.DailyCap <= 0 {
		return nil, fmt.Errorf("ledger daily cap must be positive, got %d", cfg.DailyCap)
	}
	if cfg.ResetHour < 0 || cfg.ResetHour > 23 {
		return nil, fmt.Errorf("ledger reset hour must be in 0-23, got %d", cfg.ResetHour)
	}
	if cfg.OnStoreError == "" {
		cfg.OnStoreError = PolicyDeny
	}

	return &Ledger{
		store:  store,
		config: cfg,
		logger: slog.Default().With("component", "admission.ledger"),
		now:    time.Now,
	}, nil
}

// GetBalance returns the subject's balance, zero-initializing it lazily.
func (l *Ledger) GetBalance(ctx context.Context, subject string) (*Balance, error) {
	return l.store.GetBalance(ctx, subject)
}

// CheckAndReserve reports whether the subject can afford cost. It is
// read-only; nothing is reserved in the store, and CommitSpend re-validates
// the balance at commit time to close the check-then-act race.
//
// Store errors are routed through the configured policy and never surface
// as errors; the returned Decision carries the outcome.
func (l *Ledger) CheckAndReserve(ctx context.Context, subject string, cost int64) Decision {
	balance, err := l.store.GetBalance(ctx, subject)
	if err != nil {
		return l.storeErrorDecision(subject, "check", err)
	}

	return Decision{
		Allowed:   balance.Remaining >= cost,
		Remaining: balance.Remaining,
		ResetAt:   l.NextReset(),
	}
}

// CommitSpend atomically re-validates remaining >= cost, deducts cost, and
// appends a spend transaction. Returns ErrInsufficientBalance (via
// BalanceError) if the re-check fails; the balance is unchanged.
func (l *Ledger) CommitSpend(ctx context.Context, subject string, cost int64) (int64, error) {
	if cost <= 0 {
		return 0, fmt.Errorf("spend cost must be positive, got %d", cost)
	}

	tx := l.newTransaction(subject, ActionSpend, -cost, SystemActor, "")
	balance, err := l.store.ApplySpend(ctx, subject, cost, tx)
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			return 0, err
		}
		l.logger.Error("spend failed", "subject", subject, "cost", cost, "error", err)
		return 0, err
	}

	return balance.Remaining, nil
}

// Adjust applies an admin-initiated grant (amount > 0) or revoke
// (amount < 0) and appends the audit transaction. The amount must be
// nonzero, the reason non-empty, and a revoke's magnitude bounded by the
// remaining balance; otherwise ErrInvalidAdjustment is returned and the
// balance is unchanged.
//
// Returns the previous and new balance.
func (l *Ledger) Adjust(ctx context.Context, subject string, amount int64, actor, reason string) (previous, current int64, err error) {
	if amount == 0 {
		return 0, 0, fmt.Errorf("%w: amount must be nonzero", ErrInvalidAdjustment)
	}
	if strings.TrimSpace(reason) == "" {
		return 0, 0, fmt.Errorf("%w: reason is required", ErrInvalidAdjustment)
	}
	if strings.TrimSpace(actor) == "" {
		return 0, 0, fmt.Errorf("%w: actor is required", ErrInvalidAdjustment)
	}

	action := ActionGrant
	if amount < 0 {
		action = ActionRevoke
	}

	tx := l.newTransaction(subject, action, amount, actor, reason)
	balance, err := l.store.ApplyAdjust(ctx, subject, amount, tx)
	if err != nil {
		return 0, 0, err
	}

	l.logger.Info("balance adjusted",
		"subject", subject,
		"action", string(action),
		"amount", amount,
		"actor", actor,
		"balance", balance.Remaining,
	)

	return balance.Remaining - amount, balance.Remaining, nil
}

// DailyReset sets the subject's balance to the daily cap and appends a
// reset transaction. Usage history and TotalEarned are untouched.
func (l *Ledger) DailyReset(ctx context.Context, subject string) error {
	tx := l.newTransaction(subject, ActionReset, l.config.DailyCap, SystemActor, "")
	if _, err := l.store.ApplyReset(ctx, subject, l.config.DailyCap, tx); err != nil {
		return fmt.Errorf("daily reset for %q: %w", subject, err)
	}
	return nil
}

// ResetAll applies the daily reset to every known subject and returns how
// many were reset. Per-subject failures are logged and skipped so one bad
// row never blocks the sweep.
func (l *Ledger) ResetAll(ctx context.Context) (int, error) {
	subjects, err := l.store.Subjects(ctx)
	if err != nil {
		return 0, fmt.Errorf("list subjects: %w", err)
	}

	reset := 0
	for _, subject := range subjects {
		if err := l.DailyReset(ctx, subject); err != nil {
			l.logger.Error("daily reset failed", "subject", subject, "error", err)
			continue
		}
		reset++
	}
	return reset, nil
}

// Transactions returns the subject's newest audit records first.
func (l *Ledger) Transactions(ctx context.Context, subject string, limit int) ([]*Transaction, error) {
	return l.store.Transactions(ctx, subject, limit)
}

// NextReset returns the next daily reset cliff after now.
func (l *Ledger) NextReset() time.Time {
	now := l.now()
	reset := time.Date(now.Year(), now.Month(), now.Day(), l.config.ResetHour, 0, 0, 0, now.Location())
	if !reset.After(now) {
		reset = reset.AddDate(0, 0, 1)
	}
	return reset
}

// newTransaction builds an audit record; the store fills BalanceAfter.
func (l *Ledger) newTransaction(subject string, action Action, amount int64, actor, reason string) *Transaction {
	return &Transaction{
		ID:         uuid.NewString(),
		Subject:    subject,
		Action:     action,
		Amount:     amount,
		Actor:      actor,
		Reason:     reason,
		OccurredAt: l.now(),
	}
}

// storeErrorDecision applies the OnStoreError policy.
func (l *Ledger) storeErrorDecision(subject, op string, err error) Decision {
	if l.config.OnStoreError == PolicyAdmit {
		l.logger.Error("ledger store error, failing open",
			"subject", subject, "op", op, "error", err)
		return Decision{
			Allowed:   true,
			Remaining: l.config.DailyCap,
			ResetAt:   l.NextReset(),
			Reason:    "ledger store unavailable, admitted by policy",
		}
	}

	l.logger.Error("ledger store error, failing closed",
		"subject", subject, "op", op, "error", err)
	return Decision{
		Allowed:   false,
		Remaining: 0,
		ResetAt:   l.NextReset(),
		Reason:    "ledger store unavailable",
	}
}
