package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper periodically purges expired rows from backends without native
// expiry. It runs PurgeExpired over a set of tables on a cron schedule
// (e.g. every five minutes).
//
// Backends that do not implement Purger, such as the Redis backend, expire
// rows natively and do not need a sweeper.
type Sweeper struct {
	purger   Purger
	tables   []string
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// SweeperConfig configures a Sweeper.
type SweeperConfig struct {
	// Tables lists the tables to purge on each cycle.
	Tables []string

	// Schedule is the cron expression driving purge cycles.
	// Default: "*/5 * * * *" (every five minutes).
	Schedule string

	// Logger receives purge cycle logs. Default: slog.Default.
	Logger *slog.Logger
}

// NewSweeper creates a sweeper for the given purger.
func NewSweeper(purger Purger, cfg SweeperConfig) *Sweeper {
	if cfg.Schedule == "" {
		cfg.Schedule = "*/5 * * * *"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Sweeper{
		purger:   purger,
		tables:   cfg.Tables,
		schedule: cfg.Schedule,
		cron:     cron.New(),
		logger:   logger.With("component", "store.sweeper"),
	}
}

// Start begins scheduled purging. The sweeper stops itself when ctx is
// cancelled.
//
// Common cron expressions:
//   - "*/5 * * * *" - Every five minutes
//   - "0 * * * *"   - Hourly
//   - "0 3 * * *"   - Daily at 3 AM
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate cron expression
	_, err := cron.ParseStandard(s.schedule)
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	_, err = s.cron.AddFunc(s.schedule, func() {
		s.runPurge(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule purge: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("sweeper started",
		"schedule", s.schedule,
		"tables", s.tables,
	)

	// Wait for context cancellation in background
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// RunOnce executes a single purge cycle immediately, outside the schedule.
// It returns the total number of rows purged across all tables.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	total := 0
	for _, table := range s.tables {
		purged, err := s.purger.PurgeExpired(ctx, table)
		if err != nil {
			return total, fmt.Errorf("failed to purge table %q: %w", table, err)
		}
		total += purged
	}
	return total, nil
}

// runPurge executes a purge cycle.
func (s *Sweeper) runPurge(ctx context.Context) {
	purged, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("scheduled purge failed",
			"error", err,
		)
		return
	}

	if purged > 0 {
		s.logger.Info("scheduled purge completed",
			"purged_count", purged,
		)
	} else {
		s.logger.Debug("scheduled purge completed, no rows purged")
	}
}

// Stop stops the sweeper and waits for any running purge to complete.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done() // Wait for running jobs to finish
		s.running = false
		s.logger.Info("sweeper stopped")
	}
}

// IsRunning returns true if the sweeper is running.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled purge time.
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
