package storage

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned (wrapped) by backends when the underlying
// store cannot be reached. Callers route it through their configured
// fail-open or fail-closed policy.
var ErrUnavailable = errors.New("window store unavailable")

// WindowStore persists per-subject window entries, ordered by occurrence
// time. Implementations must be safe for concurrent use.
type WindowStore interface {
	// Append records one admitted request for the subject at the given time.
	Append(ctx context.Context, subject string, at time.Time) error

	// EntriesSince returns the subject's entry times at or after cutoff,
	// oldest first. Entries before cutoff are pruned as a side effect.
	EntriesSince(ctx context.Context, subject string, cutoff time.Time) ([]time.Time, error)

	// PruneBefore removes all entries older than cutoff across subjects.
	// Returns the number of entries removed.
	PruneBefore(ctx context.Context, cutoff time.Time) (int, error)

	// Close releases any resources held by the store.
	Close() error
}
