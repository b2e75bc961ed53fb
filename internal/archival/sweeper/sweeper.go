// Package sweeper periodically reports accounts whose retention window
// has elapsed. It never deletes anything; permanent deletion stays an
// explicit operator action.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"archivist/internal/archival/metrics"
	"archivist/internal/archival/models"
)

// DefaultListLimit caps how many due accounts a single sweep reports
// in detail. The count is always exact.
const DefaultListLimit = 100

// AccountSource is the subset of the account store the sweeper reads.
type AccountSource interface {
	CountPurgeDueBefore(ctx context.Context, cutoff time.Time) (int, error)
	ListPurgeDueBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.Account, error)
}

// Notifier receives the outcome of a sweep.
type Notifier interface {
	PurgeDue(ctx context.Context, due []*models.Account, total int)
}

// Sweeper runs purge-due sweeps on a cron schedule.
type Sweeper struct {
	accounts AccountSource
	notifier Notifier
	metrics  *metrics.Metrics
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// New creates a sweeper. The schedule uses standard cron syntax
// ("0 6 * * *" for daily at 06:00); an empty schedule disables the
// sweeper. notifier and m may be nil.
func New(accounts AccountSource, notifier Notifier, m *metrics.Metrics, schedule string, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		accounts: accounts,
		notifier: notifier,
		metrics:  m,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger.With("component", "archival.sweeper"),
	}
}

// Start begins scheduled sweeps and runs until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("sweep schedule not configured, skipping sweeper")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.Sweep(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("purge sweeper started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Sweep performs a single purge-due pass: count accounts past their
// scheduled purge date, update the gauge, and notify staff. Safe to
// call directly from tests or an admin trigger.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := time.Now().UTC()

	total, err := s.accounts.CountPurgeDueBefore(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "purge sweep failed",
			"error", err,
		)
		return
	}

	if s.metrics != nil {
		s.metrics.PurgeDueAccounts.Set(float64(total))
	}

	if total == 0 {
		s.logger.DebugContext(ctx, "purge sweep completed, no accounts due")
		return
	}

	due, err := s.accounts.ListPurgeDueBefore(ctx, now, DefaultListLimit)
	if err != nil {
		s.logger.ErrorContext(ctx, "purge sweep listing failed",
			"error", err,
			"due_count", total,
		)
		return
	}

	s.logger.InfoContext(ctx, "purge sweep completed",
		"due_count", total,
		"listed", len(due),
	)

	if s.notifier != nil {
		s.notifier.PurgeDue(ctx, due, total)
	}
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("purge sweeper stopped")
	}
}

// IsRunning reports whether the scheduler is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled sweep time, if any.
func (s *Sweeper) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return nil
	}

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}

	next := entries[0].Next
	return &next
}
