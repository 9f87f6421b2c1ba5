package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs Rollover on a cron schedule, typically at local midnight.
type Scheduler struct {
	monitor *Monitor
	spec    string
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
	// stop ends the goroutine watching the context of the current run.
	stop chan struct{}
}

// NewScheduler creates a rollover scheduler for m. spec is a standard
// five-field cron expression such as "0 0 * * *".
func NewScheduler(m *Monitor, spec string) *Scheduler {
	return &Scheduler{
		monitor: m,
		spec:    spec,
		cron:    cron.New(),
		logger:  slog.Default().With("component", "monitor.scheduler"),
	}
}

// Start schedules the rollover. An empty spec disables the scheduler.
// The scheduler stops when ctx is done. It may be started again after
// Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.spec == "" {
		s.logger.Info("rollover schedule not configured, skipping scheduler")
		return nil
	}
	if s.running {
		return nil
	}

	if _, err := cron.ParseStandard(s.spec); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.spec, err)
	}
	c := cron.New()
	if _, err := c.AddFunc(s.spec, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("schedule rollover: %w", err)
	}

	s.cron = c
	s.cron.Start()
	s.running = true
	stop := make(chan struct{})
	s.stop = stop
	s.logger.Info("rollover scheduler started", "schedule", s.spec)

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stop:
		}
	}()
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	dropped, pruned, err := s.monitor.Rollover(ctx)
	if err != nil {
		s.logger.Error("scheduled rollover failed", "error", err)
		return
	}
	s.logger.Debug("scheduled rollover completed", "dropped", dropped, "pruned", pruned)
}

// Stop stops the scheduler and waits for a running rollover to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		close(s.stop)
		s.running = false
		s.logger.Info("rollover scheduler stopped")
	}
}

// IsRunning reports whether the scheduler is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled rollover, or nil when not scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
