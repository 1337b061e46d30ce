package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"draftworks/warden/pkg/admission/ledger"
)

// SQLiteConfig contains configuration for the SQLite ledger store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// SQLiteStore implements ledger.Store using SQLite.
//
// Mutations run inside a database transaction: the conditional balance
// update and the audit transaction insert commit together or not at all.
// The conditional UPDATE (WHERE remaining >= cost) serializes concurrent
// spends and revokes against the same subject at the store level.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite ledger store and initializes the
// schema.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("ledger db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d",
		cfg.Path, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger store: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{
		db:     db,
		logger: slog.Default().With("component", "ledger.storage.sqlite"),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("ledger store initialized", "path", cfg.Path)
	return s, nil
}

// initSchema creates the balances and transactions tables.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS credit_balances (
		subject      TEXT PRIMARY KEY,
		remaining    INTEGER NOT NULL DEFAULT 0 CHECK (remaining >= 0),
		total_earned INTEGER NOT NULL DEFAULT 0,
		last_updated INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ledger_transactions (
		id            TEXT PRIMARY KEY,
		subject       TEXT NOT NULL,
		action        TEXT NOT NULL,
		amount        INTEGER NOT NULL,
		balance_after INTEGER NOT NULL,
		actor         TEXT NOT NULL,
		reason        TEXT,
		occurred_at   INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tx_subject_time
		ON ledger_transactions(subject, occurred_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("initialize ledger schema: %w", err)
	}
	return nil
}

// GetBalance returns the subject's balance, zero-initializing it lazily on
// first interaction.
func (s *SQLiteStore) GetBalance(ctx context.Context, subject string) (*ledger.Balance, error) {
	if _, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO credit_balances (subject, remaining, total_earned, last_updated)
		VALUES (?, 0, 0, ?)
	`, subject, time.Now().Unix()); err != nil {
		return nil, fmt.Errorf("%w: ensure balance: %v", ledger.ErrUnavailable, err)
	}

	return s.loadBalance(ctx, s.db, subject)
}

// ApplySpend atomically deducts cost if remaining >= cost and appends tx.
func (s *SQLiteStore) ApplySpend(ctx context.Context, subject string, cost int64, tx *ledger.Transaction) (*ledger.Balance, error) {
	return s.mutate(ctx, subject, tx, func(dbtx *sql.Tx) error {
		res, err := dbtx.ExecContext(ctx, `
			UPDATE credit_balances
			SET remaining = remaining - ?, last_updated = ?
			WHERE subject = ? AND remaining >= ?
		`, cost, time.Now().Unix(), subject, cost)
		if err != nil {
			return fmt.Errorf("%w: spend: %v", ledger.ErrUnavailable, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: spend: %v", ledger.ErrUnavailable, err)
		}
		if n == 0 {
			b, err := s.loadBalance(ctx, dbtx, subject)
			if err != nil {
				return err
			}
			return &ledger.BalanceError{
				Subject:   subject,
				Requested: cost,
				Remaining: b.Remaining,
				Err:       ledger.ErrInsufficientBalance,
			}
		}
		return nil
	})
}

// ApplyAdjust atomically applies a grant or revoke and appends tx.
func (s *SQLiteStore) ApplyAdjust(ctx context.Context, subject string, amount int64, tx *ledger.Transaction) (*ledger.Balance, error) {
	return s.mutate(ctx, subject, tx, func(dbtx *sql.Tx) error {
		res, err := dbtx.ExecContext(ctx, `
			UPDATE credit_balances
			SET remaining = remaining + ?,
			    total_earned = total_earned + CASE WHEN ? > 0 THEN ? ELSE 0 END,
			    last_updated = ?
			WHERE subject = ? AND remaining + ? >= 0
		`, amount, amount, amount, time.Now().Unix(), subject, amount)
		if err != nil {
			return fmt.Errorf("%w: adjust: %v", ledger.ErrUnavailable, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: adjust: %v", ledger.ErrUnavailable, err)
		}
		if n == 0 {
			b, err := s.loadBalance(ctx, dbtx, subject)
			if err != nil {
				return err
			}
			return &ledger.BalanceError{
				Subject:   subject,
				Requested: amount,
				Remaining: b.Remaining,
				Err:       ledger.ErrInvalidAdjustment,
			}
		}
		return nil
	})
}

// ApplyReset sets remaining to cap and appends tx.
func (s *SQLiteStore) ApplyReset(ctx context.Context, subject string, cap int64, tx *ledger.Transaction) (*ledger.Balance, error) {
	return s.mutate(ctx, subject, tx, func(dbtx *sql.Tx) error {
		if _, err := dbtx.ExecContext(ctx, `
			UPDATE credit_balances SET remaining = ?, last_updated = ? WHERE subject = ?
		`, cap, time.Now().Unix(), subject); err != nil {
			return fmt.Errorf("%w: reset: %v", ledger.ErrUnavailable, err)
		}
		return nil
	})
}

// Subjects lists all subjects with a balance row.
func (s *SQLiteStore) Subjects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT subject FROM credit_balances`)
	if err != nil {
		return nil, fmt.Errorf("%w: subjects: %v", ledger.ErrUnavailable, err)
	}
	defer rows.Close()

	var subjects []string
	for rows.Next() {
		var subject string
		if err := rows.Scan(&subject); err != nil {
			return nil, fmt.Errorf("%w: subjects: %v", ledger.ErrUnavailable, err)
		}
		subjects = append(subjects, subject)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: subjects: %v", ledger.ErrUnavailable, err)
	}
	return subjects, nil
}

// Transactions returns the subject's newest transactions first.
func (s *SQLiteStore) Transactions(ctx context.Context, subject string, limit int) ([]*ledger.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject, action, amount, balance_after, actor, COALESCE(reason, ''), occurred_at
		FROM ledger_transactions
		WHERE subject = ?
		ORDER BY occurred_at DESC, rowid DESC
		LIMIT ?
	`, subject, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: transactions: %v", ledger.ErrUnavailable, err)
	}
	defer rows.Close()

	var txs []*ledger.Transaction
	for rows.Next() {
		var (
			tx         ledger.Transaction
			action     string
			occurredAt int64
		)
		if err := rows.Scan(&tx.ID, &tx.Subject, &action, &tx.Amount,
			&tx.BalanceAfter, &tx.Actor, &tx.Reason, &occurredAt); err != nil {
			return nil, fmt.Errorf("%w: transactions: %v", ledger.ErrUnavailable, err)
		}
		tx.Action = ledger.Action(action)
		tx.OccurredAt = time.UnixMilli(occurredAt)
		txs = append(txs, &tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: transactions: %v", ledger.ErrUnavailable, err)
	}
	return txs, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// loadBalance reads a balance row inside an open transaction or on the db.
func (s *SQLiteStore) loadBalance(ctx context.Context, q querier, subject string) (*ledger.Balance, error) {
	b := &ledger.Balance{Subject: subject}
	var lastUpdated int64

	err := q.QueryRowContext(ctx, `
		SELECT remaining, total_earned, last_updated
		FROM credit_balances WHERE subject = ?
	`, subject).Scan(&b.Remaining, &b.TotalEarned, &lastUpdated)
	if err == sql.ErrNoRows {
		// Lazily created rows make this unreachable in practice; report a
		// zero balance rather than an outage.
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load balance: %v", ledger.ErrUnavailable, err)
	}

	b.LastUpdated = time.Unix(lastUpdated, 0)
	return b, nil
}

// mutate ensures the balance row exists, runs the mutation, records the
// audit transaction with the post-mutation balance, and commits the whole
// thing atomically.
func (s *SQLiteStore) mutate(ctx context.Context, subject string, tx *ledger.Transaction, apply func(*sql.Tx) error) (*ledger.Balance, error) {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", ledger.ErrUnavailable, err)
	}
	defer dbtx.Rollback()

	if _, err := dbtx.ExecContext(ctx, `
		INSERT OR IGNORE INTO credit_balances (subject, remaining, total_earned, last_updated)
		VALUES (?, 0, 0, ?)
	`, subject, time.Now().Unix()); err != nil {
		return nil, fmt.Errorf("%w: ensure balance: %v", ledger.ErrUnavailable, err)
	}

	if err := apply(dbtx); err != nil {
		return nil, err
	}

	balance, err := s.loadBalance(ctx, dbtx, subject)
	if err != nil {
		return nil, err
	}

	tx.BalanceAfter = balance.Remaining
	if _, err := dbtx.ExecContext(ctx, `
		INSERT INTO ledger_transactions (id, subject, action, amount, balance_after, actor, reason, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, tx.ID, tx.Subject, string(tx.Action), tx.Amount, tx.BalanceAfter,
		tx.Actor, tx.Reason, tx.OccurredAt.UnixMilli()); err != nil {
		return nil, fmt.Errorf("%w: append transaction: %v", ledger.ErrUnavailable, err)
	}

	if err := dbtx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ledger.ErrUnavailable, err)
	}
	return balance, nil
}
