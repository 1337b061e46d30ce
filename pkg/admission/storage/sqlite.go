package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore implements WindowStore using SQLite for persistence. Suitable
// for single-instance deployments where window entries must survive
// restarts.
//
// SQLiteStore uses a write-ahead log (WAL) for better concurrent
// performance. Entry times are stored as epoch milliseconds, indexed per
// subject.
type SQLiteStore struct {
	db        *sql.DB
	mu        sync.Mutex
	closeOnce sync.Once

	appendStmt *sql.Stmt
	listStmt   *sql.Stmt
	pruneStmt  *sql.Stmt
}

// SQLiteStoreConfig configures the SQLite window store.
type SQLiteStoreConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteStore creates a new SQLite window store with default settings.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(SQLiteStoreConfig{
		DBPath:      dbPath,
		BusyTimeout: 5 * time.Second,
	})
}

// NewSQLiteStoreWithConfig creates a new SQLite window store with custom
// configuration.
func NewSQLiteStoreWithConfig(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return store, nil
}

// initSchema creates the database schema if it doesn't exist.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS window_entries (
		subject     TEXT NOT NULL,
		occurred_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_window_subject_time
		ON window_entries(subject, occurred_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// prepareStatements prepares SQL statements for reuse.
func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.appendStmt, err = s.db.Prepare(`
		INSERT INTO window_entries (subject, occurred_at) VALUES (?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare append statement: %w", err)
	}

	s.listStmt, err = s.db.Prepare(`
		SELECT occurred_at FROM window_entries
		WHERE subject = ? AND occurred_at >= ?
		ORDER BY occurred_at ASC
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare list statement: %w", err)
	}

	s.pruneStmt, err = s.db.Prepare(`
		DELETE FROM window_entries WHERE occurred_at < ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare prune statement: %w", err)
	}

	return nil
}

// Append records one entry for the subject.
func (s *SQLiteStore) Append(ctx context.Context, subject string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.appendStmt.ExecContext(ctx, subject, at.UnixMilli()); err != nil {
		return fmt.Errorf("%w: append: %v", ErrUnavailable, err)
	}
	return nil
}

// EntriesSince returns entries at or after cutoff, pruning older rows for
// the subject as a side effect.
func (s *SQLiteStore) EntriesSince(ctx context.Context, subject string, cutoff time.Time) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Lazy prune for this subject only; the global sweep is PruneBefore.
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM window_entries WHERE subject = ? AND occurred_at < ?`,
		subject, cutoff.UnixMilli(),
	); err != nil {
		return nil, fmt.Errorf("%w: prune: %v", ErrUnavailable, err)
	}

	rows, err := s.listStmt.QueryContext(ctx, subject, cutoff.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var entries []time.Time
	for rows.Next() {
		var ms int64
		if err := rows.Scan(&ms); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrUnavailable, err)
		}
		entries = append(entries, time.UnixMilli(ms))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", ErrUnavailable, err)
	}

	return entries, nil
}

// PruneBefore removes all entries older than cutoff across subjects.
func (s *SQLiteStore) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.pruneStmt.ExecContext(ctx, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("%w: prune: %v", ErrUnavailable, err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(deleted), nil
}

// Close releases the prepared statements and database handle.
// Close is idempotent and safe to call multiple times.
func (s *SQLiteStore) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		if s.appendStmt != nil {
			s.appendStmt.Close()
		}
		if s.listStmt != nil {
			s.listStmt.Close()
		}
		if s.pruneStmt != nil {
			s.pruneStmt.Close()
		}
		if s.db != nil {
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = s.db.Close()
		}
	})

	return closeErr
}
