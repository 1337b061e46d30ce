package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"draftworks/warden/pkg/admission/ledger"
)

// runStoreTests exercises the ledger.Store contract against a backend.
func runStoreTests(t *testing.T, newStore func(t *testing.T) ledger.Store) {
	ctx := context.Background()

	newTx := func(subject string, action ledger.Action, amount int64) *ledger.Transaction {
		return &ledger.Transaction{
			ID:         fmt.Sprintf("tx-%s-%s-%d", subject, action, time.Now().UnixNano()),
			Subject:    subject,
			Action:     action,
			Amount:     amount,
			Actor:      "test",
			Reason:     "test",
			OccurredAt: time.Now(),
		}
	}

	t.Run("lazy zero balance", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		b, err := s.GetBalance(ctx, "user-1")
		if err != nil {
			t.Fatalf("GetBalance: %v", err)
		}
		if b.Subject != "user-1" || b.Remaining != 0 || b.TotalEarned != 0 {
			t.Errorf("got %+v, want zero-initialized balance", b)
		}
	})

	t.Run("spend respects balance", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		if _, err := s.ApplyReset(ctx, "user-1", 40, newTx("user-1", ledger.ActionReset, 40)); err != nil {
			t.Fatalf("ApplyReset: %v", err)
		}

		b, err := s.ApplySpend(ctx, "user-1", 30, newTx("user-1", ledger.ActionSpend, -30))
		if err != nil {
			t.Fatalf("ApplySpend: %v", err)
		}
		if b.Remaining != 10 {
			t.Fatalf("remaining = %d, want 10", b.Remaining)
		}

		// Overdraft is rejected with the balance context and no mutation.
		_, err = s.ApplySpend(ctx, "user-1", 11, newTx("user-1", ledger.ActionSpend, -11))
		if !errors.Is(err, ledger.ErrInsufficientBalance) {
			t.Fatalf("want ErrInsufficientBalance, got %v", err)
		}
		var balErr *ledger.BalanceError
		if !errors.As(err, &balErr) {
			t.Fatal("want a BalanceError")
		}
		if balErr.Requested != 11 || balErr.Remaining != 10 {
			t.Errorf("BalanceError = %+v", balErr)
		}

		b, _ = s.GetBalance(ctx, "user-1")
		if b.Remaining != 10 {
			t.Errorf("failed spend mutated balance: %d", b.Remaining)
		}

		// Spending the exact balance drains it to zero.
		b, err = s.ApplySpend(ctx, "user-1", 10, newTx("user-1", ledger.ActionSpend, -10))
		if err != nil {
			t.Fatalf("exact spend: %v", err)
		}
		if b.Remaining != 0 {
			t.Errorf("remaining = %d, want 0", b.Remaining)
		}
	})

	t.Run("adjust grant and revoke", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		b, err := s.ApplyAdjust(ctx, "user-1", 50, newTx("user-1", ledger.ActionGrant, 50))
		if err != nil {
			t.Fatalf("grant: %v", err)
		}
		if b.Remaining != 50 || b.TotalEarned != 50 {
			t.Fatalf("after grant: %+v", b)
		}

		// Revoke within the balance; TotalEarned unchanged.
		b, err = s.ApplyAdjust(ctx, "user-1", -20, newTx("user-1", ledger.ActionRevoke, -20))
		if err != nil {
			t.Fatalf("revoke: %v", err)
		}
		if b.Remaining != 30 || b.TotalEarned != 50 {
			t.Fatalf("after revoke: %+v", b)
		}

		// Revoke beyond the balance is rejected without mutation.
		if _, err := s.ApplyAdjust(ctx, "user-1", -31, newTx("user-1", ledger.ActionRevoke, -31)); !errors.Is(err, ledger.ErrInvalidAdjustment) {
			t.Fatalf("over-revoke: want ErrInvalidAdjustment, got %v", err)
		}
		b, _ = s.GetBalance(ctx, "user-1")
		if b.Remaining != 30 {
			t.Errorf("failed revoke mutated balance: %d", b.Remaining)
		}
	})

	t.Run("reset preserves total earned", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		if _, err := s.ApplyAdjust(ctx, "user-1", 100, newTx("user-1", ledger.ActionGrant, 100)); err != nil {
			t.Fatalf("grant: %v", err)
		}
		b, err := s.ApplyReset(ctx, "user-1", 40, newTx("user-1", ledger.ActionReset, 40))
		if err != nil {
			t.Fatalf("ApplyReset: %v", err)
		}
		if b.Remaining != 40 || b.TotalEarned != 100 {
			t.Errorf("after reset: %+v", b)
		}
	})

	t.Run("transactions carry balance after", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		if _, err := s.ApplyReset(ctx, "user-1", 40, newTx("user-1", ledger.ActionReset, 40)); err != nil {
			t.Fatalf("ApplyReset: %v", err)
		}
		spendTx := newTx("user-1", ledger.ActionSpend, -10)
		if _, err := s.ApplySpend(ctx, "user-1", 10, spendTx); err != nil {
			t.Fatalf("ApplySpend: %v", err)
		}
		if spendTx.BalanceAfter != 30 {
			t.Errorf("store did not fill BalanceAfter: %d", spendTx.BalanceAfter)
		}

		txs, err := s.Transactions(ctx, "user-1", 10)
		if err != nil {
			t.Fatalf("Transactions: %v", err)
		}
		if len(txs) != 2 {
			t.Fatalf("got %d transactions, want 2", len(txs))
		}
		// Newest first.
		if txs[0].Action != ledger.ActionSpend || txs[0].BalanceAfter != 30 {
			t.Errorf("tx 0: %+v", txs[0])
		}
		if txs[1].Action != ledger.ActionReset || txs[1].BalanceAfter != 40 {
			t.Errorf("tx 1: %+v", txs[1])
		}
	})

	t.Run("transactions limit", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		for i := 0; i < 5; i++ {
			if _, err := s.ApplyAdjust(ctx, "user-1", 1, newTx("user-1", ledger.ActionGrant, 1)); err != nil {
				t.Fatalf("grant %d: %v", i, err)
			}
		}

		txs, err := s.Transactions(ctx, "user-1", 3)
		if err != nil {
			t.Fatalf("Transactions: %v", err)
		}
		if len(txs) != 3 {
			t.Errorf("got %d transactions, want 3", len(txs))
		}
	})

	t.Run("subjects", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		for _, subject := range []string{"b", "a", "c"} {
			if _, err := s.GetBalance(ctx, subject); err != nil {
				t.Fatalf("GetBalance %s: %v", subject, err)
			}
		}

		subjects, err := s.Subjects(ctx)
		if err != nil {
			t.Fatalf("Subjects: %v", err)
		}
		sort.Strings(subjects)
		if len(subjects) != 3 || subjects[0] != "a" || subjects[1] != "b" || subjects[2] != "c" {
			t.Errorf("subjects = %v", subjects)
		}
	})

	t.Run("subjects isolated", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		if _, err := s.ApplyReset(ctx, "a", 40, newTx("a", ledger.ActionReset, 40)); err != nil {
			t.Fatalf("ApplyReset: %v", err)
		}
		b, err := s.GetBalance(ctx, "b")
		if err != nil {
			t.Fatalf("GetBalance: %v", err)
		}
		if b.Remaining != 0 {
			t.Errorf("subject b affected by subject a: %d", b.Remaining)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) ledger.Store {
		return NewMemoryStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) ledger.Store {
		s, err := NewSQLiteStore(SQLiteConfig{
			Path: filepath.Join(t.TempDir(), "ledger.db"),
		})
		if err != nil {
			t.Fatalf("NewSQLiteStore: %v", err)
		}
		return s
	})
}

func TestSQLiteStore_EmptyPath(t *testing.T) {
	if _, err := NewSQLiteStore(SQLiteConfig{}); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestSQLiteStore_Persistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	s, err := NewSQLiteStore(SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	tx := &ledger.Transaction{
		ID: "tx-1", Subject: "user-1", Action: ledger.ActionReset,
		Amount: 40, Actor: "system", OccurredAt: time.Now(),
	}
	if _, err := s.ApplyReset(ctx, "user-1", 40, tx); err != nil {
		t.Fatalf("ApplyReset: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen and verify the balance and audit trail survived.
	s, err = NewSQLiteStore(SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	b, err := s.GetBalance(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if b.Remaining != 40 {
		t.Errorf("remaining = %d, want 40", b.Remaining)
	}

	txs, err := s.Transactions(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	if len(txs) != 1 || txs[0].ID != "tx-1" {
		t.Errorf("transactions = %+v", txs)
	}
}
