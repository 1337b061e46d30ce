package storage

import (
	"context"
	"sync"
	"time"

	"draftworks/warden/pkg/admission/ledger"
)

// MemoryStore implements ledger.Store in memory. All data is lost when the
// process exits; intended for tests and single-instance development.
//
// A single mutex serializes all mutations, which trivially satisfies the
// store-level atomicity the ledger requires.
type MemoryStore struct {
	mu       sync.Mutex
	balances map[string]*ledger.Balance
	txs      map[string][]*ledger.Transaction
}

// NewMemoryStore creates an empty in-memory ledger store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances: make(map[string]*ledger.Balance),
		txs:      make(map[string][]*ledger.Transaction),
	}
}

// getLocked returns the subject's balance, creating a zero-initialized row
// on first interaction. Caller must hold the mutex.
func (s *MemoryStore) getLocked(subject string) *ledger.Balance {
	b, ok := s.balances[subject]
	if !ok {
		b = &ledger.Balance{Subject: subject, LastUpdated: time.Now()}
		s.balances[subject] = b
	}
	return b
}

// GetBalance returns the subject's balance, zero-initializing it lazily.
func (s *MemoryStore) GetBalance(ctx context.Context, subject string) (*ledger.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.getLocked(subject)
	copied := *b
	return &copied, nil
}

// ApplySpend atomically deducts cost if remaining >= cost and appends tx.
func (s *MemoryStore) ApplySpend(ctx context.Context, subject string, cost int64, tx *ledger.Transaction) (*ledger.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.getLocked(subject)
	if b.Remaining < cost {
		return nil, &ledger.BalanceError{
			Subject:   subject,
			Requested: cost,
			Remaining: b.Remaining,
			Err:       ledger.ErrInsufficientBalance,
		}
	}

	b.Remaining -= cost
	b.LastUpdated = time.Now()
	s.appendLocked(b, tx)

	copied := *b
	return &copied, nil
}

// ApplyAdjust atomically applies a grant or revoke and appends tx.
func (s *MemoryStore) ApplyAdjust(ctx context.Context, subject string, amount int64, tx *ledger.Transaction) (*ledger.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.getLocked(subject)
	if amount < 0 && -amount > b.Remaining {
		return nil, &ledger.BalanceError{
			Subject:   subject,
			Requested: amount,
			Remaining: b.Remaining,
			Err:       ledger.ErrInvalidAdjustment,
		}
	}

	b.Remaining += amount
	if amount > 0 {
		b.TotalEarned += amount
	}
	b.LastUpdated = time.Now()
	s.appendLocked(b, tx)

	copied := *b
	return &copied, nil
}

// ApplyReset sets remaining to cap and appends tx.
func (s *MemoryStore) ApplyReset(ctx context.Context, subject string, cap int64, tx *ledger.Transaction) (*ledger.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.getLocked(subject)
	b.Remaining = cap
	b.LastUpdated = time.Now()
	s.appendLocked(b, tx)

	copied := *b
	return &copied, nil
}

// Subjects lists all subjects with a balance row.
func (s *MemoryStore) Subjects(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subjects := make([]string, 0, len(s.balances))
	for subject := range s.balances {
		subjects = append(subjects, subject)
	}
	return subjects, nil
}

// Transactions returns the subject's newest transactions first.
func (s *MemoryStore) Transactions(ctx context.Context, subject string, limit int) ([]*ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.txs[subject]
	var out []*ledger.Transaction
	for i := len(all) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		copied := *all[i]
		out = append(out, &copied)
	}
	return out, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }

// appendLocked records the transaction with the post-mutation balance.
// Caller must hold the mutex.
func (s *MemoryStore) appendLocked(b *ledger.Balance, tx *ledger.Transaction) {
	tx.BalanceAfter = b.Remaining
	copied := *tx
	s.txs[b.Subject] = append(s.txs[b.Subject], &copied)
}
