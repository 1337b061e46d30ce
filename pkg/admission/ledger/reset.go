package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// ResetScheduler runs the daily reset sweep at the ledger's configured
// wall-clock hour using cron scheduling.
type ResetScheduler struct {
	ledger  *Ledger
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// NewResetScheduler creates a scheduler for the given ledger.
func NewResetScheduler(l *Ledger) *ResetScheduler {
	return &ResetScheduler{
		ledger: l,
		cron:   cron.New(),
		logger: slog.Default().With("component", "ledger.scheduler"),
	}
}

// Start begins the scheduled reset at minute zero of the configured hour.
func (s *ResetScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	spec := fmt.Sprintf("0 %d * * *", s.ledger.config.ResetHour)
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid reset schedule %q: %w", spec, err)
	}

	if _, err := s.cron.AddFunc(spec, func() {
		s.runReset(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule daily reset: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("daily reset scheduler started",
		"schedule", spec,
		"daily_cap", s.ledger.config.DailyCap,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop halts the scheduler. Any in-flight sweep finishes.
func (s *ResetScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cron.Stop()
	s.running = false
	s.logger.Info("daily reset scheduler stopped")
}

// runReset executes one sweep.
func (s *ResetScheduler) runReset(ctx context.Context) {
	s.logger.Info("starting daily credit reset")

	reset, err := s.ledger.ResetAll(ctx)
	if err != nil {
		s.logger.Error("daily credit reset failed", "error", err)
		return
	}

	s.logger.Info("daily credit reset complete", "subjects_reset", reset)
}
