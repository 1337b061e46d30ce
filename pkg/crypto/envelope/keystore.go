package envelope

import (
	"context"
	"sync"
)

// WrappedKeyRecord is a subject's content key encrypted under the master
// key, in canonical ciphertext form. One record exists per subject, created
// on first content-encryption need and deleted with the subject.
type WrappedKeyRecord struct {
	Subject    string
	WrappedKey string
}

// KeyStore persists wrapped content keys. Implementations must be safe for
// concurrent use.
type KeyStore interface {
	// Get returns the wrapped key record for a subject, or nil if none
	// exists.
	Get(ctx context.Context, subject string) (*WrappedKeyRecord, error)

	// Put stores a wrapped key record. Putting a record for a subject that
	// already has one is an overwrite.
	Put(ctx context.Context, rec *WrappedKeyRecord) error

	// Delete removes a subject's wrapped key record. No-op if absent.
	Delete(ctx context.Context, subject string) error

	// Close releases any resources held by the store.
	Close() error
}

// MemoryKeyStore implements KeyStore in memory. All data is lost when the
// process exits; intended for tests and single-instance development.
type MemoryKeyStore struct {
	mu   sync.RWMutex
	recs map[string]string
}

// NewMemoryKeyStore creates an empty in-memory key store.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{recs: make(map[string]string)}
}

// Get returns the record for a subject, or nil if none exists.
func (s *MemoryKeyStore) Get(ctx context.Context, subject string) (*WrappedKeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wrapped, ok := s.recs[subject]
	if !ok {
		return nil, nil
	}
	return &WrappedKeyRecord{Subject: subject, WrappedKey: wrapped}, nil
}

// Put stores a record, overwriting any existing one for the subject.
func (s *MemoryKeyStore) Put(ctx context.Context, rec *WrappedKeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recs[rec.Subject] = rec.WrappedKey
	return nil
}

// Delete removes a subject's record.
func (s *MemoryKeyStore) Delete(ctx context.Context, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.recs, subject)
	return nil
}

// Close is a no-op for the memory store.
func (s *MemoryKeyStore) Close() error { return nil }
