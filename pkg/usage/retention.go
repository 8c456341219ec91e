package usage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the ledger's retention pruning on a cron schedule.
type Scheduler struct {
	ledger  *Ledger
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// NewScheduler creates a retention scheduler over the ledger.
func NewScheduler(ledger *Ledger) *Scheduler {
	return &Scheduler{
		ledger: ledger,
		cron:   cron.New(),
		logger: slog.Default().With("component", "usage.scheduler"),
	}
}

// Start begins scheduled pruning using the ledger's PruneSchedule
// cron expression ("0 3 * * *" runs daily at 3 AM). An empty schedule
// disables the scheduler. Pruning stops when the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ledger.config.PruneSchedule == "" || s.ledger.config.RetentionDays <= 0 {
		s.logger.Info("usage pruning not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.ledger.config.PruneSchedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.ledger.config.PruneSchedule, err)
	}

	if _, err := s.cron.AddFunc(s.ledger.config.PruneSchedule, func() {
		s.runPruning(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("usage retention scheduler started",
		"schedule", s.ledger.config.PruneSchedule,
		"retention_days", s.ledger.config.RetentionDays,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// runPruning executes one pruning cycle.
func (s *Scheduler) runPruning(ctx context.Context) {
	deleted, err := s.ledger.Prune(ctx)
	if err != nil {
		s.logger.Error("scheduled usage pruning failed", "error", err)
		return
	}

	if deleted > 0 {
		s.logger.Info("scheduled usage pruning completed", "deleted_count", deleted)
	} else {
		s.logger.Debug("scheduled usage pruning completed, no records deleted")
	}
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.running = false
	s.logger.Info("usage retention scheduler stopped")
}
