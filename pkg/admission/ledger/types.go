package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Action classifies a balance mutation in the audit trail.
type Action string

const (
	// ActionSpend is a deduction for an admitted metered action.
	ActionSpend Action = "spend"

	// ActionGrant is an admin-initiated balance increase.
	ActionGrant Action = "grant"

	// ActionRevoke is an admin-initiated balance decrease.
	ActionRevoke Action = "revoke"

	// ActionReset is the fixed-time daily reset to the daily cap.
	ActionReset Action = "reset"
)

// Balance is a subject's current credit state. Remaining is never negative;
// TotalEarned only increases, and only via positive grants.
type Balance struct {
	Subject     string
	Remaining   int64
	TotalEarned int64
	LastUpdated time.Time
}

// Transaction is one append-only, immutable audit record. Exactly one row
// exists per balance mutation.
type Transaction struct {
	ID           string
	Subject      string
	Action       Action
	Amount       int64 // signed: negative for spend/revoke
	BalanceAfter int64
	Actor        string
	Reason       string
	OccurredAt   time.Time
}

// Errors returned by ledger operations.
var (
	// ErrInsufficientBalance is returned when a spend exceeds the remaining
	// balance. This is an expected outcome, not a system fault.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidAdjustment is returned when an adjustment is rejected:
	// zero amount, missing reason, or a revoke exceeding the balance.
	// The balance is unchanged.
	ErrInvalidAdjustment = errors.New("invalid adjustment")

	// ErrUnavailable is returned (wrapped) by stores when the backing store
	// cannot be reached.
	ErrUnavailable = errors.New("ledger store unavailable")
)

// BalanceError carries the balance context of a rejected mutation.
type BalanceError struct {
	Subject   string
	Requested int64
	Remaining int64
	Err       error
}

// Error implements the error interface.
func (e *BalanceError) Error() string {
	return fmt.Sprintf("%v for %s: requested=%d, remaining=%d",
		e.Err, e.Subject, e.Requested, e.Remaining)
}

// Unwrap returns the underlying sentinel error.
func (e *BalanceError) Unwrap() error {
	return e.Err
}

// Store persists balances and their audit trail. Implementations must apply
// each mutation and its Transaction atomically, and must enforce the
// conditional checks (remaining >= cost, revoke bounded by remaining) at the
// store level so concurrent mutations against one subject serialize
// correctly.
//
// Each Apply method fills tx.BalanceAfter with the post-mutation remaining
// before persisting the record.
type Store interface {
	// GetBalance returns the subject's balance, zero-initializing it lazily
	// on first interaction.
	GetBalance(ctx context.Context, subject string) (*Balance, error)

	// ApplySpend atomically re-validates remaining >= cost, deducts cost,
	// and appends tx. Returns ErrInsufficientBalance (wrapped in a
	// BalanceError) without mutation if the re-check fails.
	ApplySpend(ctx context.Context, subject string, cost int64, tx *Transaction) (*Balance, error)

	// ApplyAdjust atomically applies a grant (amount > 0, TotalEarned grows)
	// or revoke (amount < 0, bounded by remaining, TotalEarned unchanged)
	// and appends tx. Returns ErrInvalidAdjustment without mutation when a
	// revoke exceeds the balance.
	ApplyAdjust(ctx context.Context, subject string, amount int64, tx *Transaction) (*Balance, error)

	// ApplyReset sets remaining to cap and appends tx.
	ApplyReset(ctx context.Context, subject string, cap int64, tx *Transaction) (*Balance, error)

	// Subjects lists all subjects with a balance row.
	Subjects(ctx context.Context) ([]string, error)

	// Transactions returns the subject's newest transactions first, at most
	// limit rows.
	Transactions(ctx context.Context, subject string, limit int) ([]*Transaction, error)

	// Close releases any resources held by the store.
	Close() error
}
