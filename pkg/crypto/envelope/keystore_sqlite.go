package envelope

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteKeyStore implements KeyStore using SQLite for persistence. Suitable
// for single-instance deployments where wrapped keys must survive restarts.
type SQLiteKeyStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteKeyStore opens (or creates) the key store database at path.
func NewSQLiteKeyStore(path string) (*SQLiteKeyStore, error) {
	if path == "" {
		return nil, fmt.Errorf("key store db path cannot be empty")
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d", path, int((5 * time.Second).Milliseconds()))

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open key store: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS wrapped_keys (
		subject     TEXT PRIMARY KEY,
		wrapped_key TEXT NOT NULL,
		created_at  INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize key store schema: %w", err)
	}

	logger := slog.Default().With("component", "envelope.keystore")
	logger.Info("wrapped key store opened", "path", path)

	return &SQLiteKeyStore{db: db, logger: logger}, nil
}

// Get returns the record for a subject, or nil if none exists.
func (s *SQLiteKeyStore) Get(ctx context.Context, subject string) (*WrappedKeyRecord, error) {
	var wrapped string
	err := s.db.QueryRowContext(ctx,
		`SELECT wrapped_key FROM wrapped_keys WHERE subject = ?`, subject,
	).Scan(&wrapped)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load wrapped key: %w", err)
	}
	return &WrappedKeyRecord{Subject: subject, WrappedKey: wrapped}, nil
}

// Put stores a record, overwriting any existing one for the subject.
func (s *SQLiteKeyStore) Put(ctx context.Context, rec *WrappedKeyRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wrapped_keys (subject, wrapped_key, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (subject) DO UPDATE SET wrapped_key = excluded.wrapped_key
	`, rec.Subject, rec.WrappedKey, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save wrapped key: %w", err)
	}
	return nil
}

// Delete removes a subject's record.
func (s *SQLiteKeyStore) Delete(ctx context.Context, subject string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM wrapped_keys WHERE subject = ?`, subject)
	if err != nil {
		return fmt.Errorf("delete wrapped key: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteKeyStore) Close() error {
	return s.db.Close()
}
