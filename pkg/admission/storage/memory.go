package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements WindowStore in memory. All entries are lost when
// the process exits.
//
// MemoryStore is thread-safe using sync.Mutex; per-subject entry slices are
// kept sorted by occurrence time.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string][]time.Time
}

// NewMemoryStore creates an empty in-memory window store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]time.Time)}
}

// Append records one entry for the subject.
func (s *MemoryStore) Append(ctx context.Context, subject string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := append(s.entries[subject], at)
	// Appends arrive in near-chronological order; sort keeps the invariant
	// when a caller supplies an out-of-order timestamp.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Before(entries[j]) })
	s.entries[subject] = entries
	return nil
}

// EntriesSince returns entries at or after cutoff, pruning older ones.
func (s *MemoryStore) EntriesSince(ctx context.Context, subject string, cutoff time.Time) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.entries[subject]
	i := sort.Search(len(entries), func(i int) bool { return !entries[i].Before(cutoff) })

	surviving := make([]time.Time, len(entries)-i)
	copy(surviving, entries[i:])

	if i > 0 {
		if len(surviving) == 0 {
			delete(s.entries, subject)
		} else {
			s.entries[subject] = surviving
		}
	}

	return surviving, nil
}

// PruneBefore removes entries older than cutoff for every subject.
func (s *MemoryStore) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for subject, entries := range s.entries {
		i := sort.Search(len(entries), func(i int) bool { return !entries[i].Before(cutoff) })
		if i == 0 {
			continue
		}
		pruned += i
		if i == len(entries) {
			delete(s.entries, subject)
		} else {
			s.entries[subject] = entries[i:]
		}
	}
	return pruned, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }
