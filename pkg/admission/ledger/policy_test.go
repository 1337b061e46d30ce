package ledger

import (
	"context"
	"testing"
	"time"
)

// failingStore simulates a store outage for every operation.
type failingStore struct{}

func (failingStore) GetBalance(ctx context.Context, subject string) (*Balance, error) {
	return nil, ErrUnavailable
}

func (failingStore) ApplySpend(ctx context.Context, subject string, cost int64, tx *Transaction) (*Balance, error) {
	return nil, ErrUnavailable
}

func (failingStore) ApplyAdjust(ctx context.Context, subject string, amount int64, tx *Transaction) (*Balance, error) {
	return nil, ErrUnavailable
}

func (failingStore) ApplyReset(ctx context.Context, subject string, cap int64, tx *Transaction) (*Balance, error) {
	return nil, ErrUnavailable
}

func (failingStore) Subjects(ctx context.Context) ([]string, error) { return nil, ErrUnavailable }

func (failingStore) Transactions(ctx context.Context, subject string, limit int) ([]*Transaction, error) {
	return nil, ErrUnavailable
}

func (failingStore) Close() error { return nil }

func TestLedger_FailsClosedByDefault(t *testing.T) {
	l, err := New(failingStore{}, Config{DailyCap: 40, ResetHour: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	d := l.CheckAndReserve(context.Background(), "user-1", 10)
	if d.Allowed {
		t.Error("ledger must fail closed on store outage")
	}
	if d.Reason == "" {
		t.Error("degraded decision should carry a reason")
	}
}

func TestLedger_AdmitPolicy(t *testing.T) {
	l, err := New(failingStore{}, Config{DailyCap: 40, ResetHour: 4, OnStoreError: PolicyAdmit})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	d := l.CheckAndReserve(context.Background(), "user-1", 10)
	if !d.Allowed {
		t.Error("admit policy must admit on store outage")
	}
	if d.Reason == "" {
		t.Error("degraded decision should carry a reason")
	}
}

func TestLedger_NextReset(t *testing.T) {
	l, err := New(failingStore{}, Config{DailyCap: 40, ResetHour: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			"before the cliff",
			time.Date(2026, 8, 29, 2, 30, 0, 0, time.UTC),
			time.Date(2026, 8, 29, 4, 0, 0, 0, time.UTC),
		},
		{
			"exactly at the cliff",
			time.Date(2026, 8, 29, 4, 0, 0, 0, time.UTC),
			time.Date(2026, 8, 30, 4, 0, 0, 0, time.UTC),
		},
		{
			"after the cliff",
			time.Date(2026, 8, 29, 18, 0, 0, 0, time.UTC),
			time.Date(2026, 8, 30, 4, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l.now = func() time.Time { return tt.now }
			if got := l.NextReset(); !got.Equal(tt.want) {
				t.Errorf("NextReset at %v = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}
