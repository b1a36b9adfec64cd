// Package poll re-checks the notice board on a schedule.
package poll

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSpec re-checks the board every 15 minutes.
const DefaultSpec = "@every 15m"

// Refresher runs one check of the board.
type Refresher interface {
	Refresh(ctx context.Context) (bool, error)
}

// Scheduler drives periodic refreshes with a cron schedule.
type Scheduler struct {
	cron      *cron.Cron
	refresher Refresher
	logger    *slog.Logger
	spec      string
	timeout   time.Duration

	mu  sync.Mutex
	ctx context.Context // Parent of every scheduled check, set by Start
}

// New creates a scheduler that calls refresher on spec, a standard five-field
// cron expression or a descriptor such as "@every 15m". Each check is bounded
// by timeout when it is positive.
func New(refresher Refresher, spec string, loc *time.Location, timeout time.Duration, logger *slog.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSpec
	}
	if loc == nil {
		loc = time.Local
	}

	s := &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		refresher: refresher,
		logger:    logger,
		spec:      spec,
		timeout:   timeout,
		ctx:       context.Background(),
	}
	if _, err := s.cron.AddFunc(spec, s.runScheduled); err != nil {
		return nil, fmt.Errorf("register check %q: %w", spec, err)
	}
	return s, nil
}

// Start begins running checks in the background. Checks use ctx as their parent.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("Poll scheduler started", "spec", s.spec, "next", s.Next().Format(time.RFC3339))
}

// Stop stops scheduling and waits for a running check to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Poll scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the time of the next scheduled check.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	if !entries[0].Next.IsZero() {
		return entries[0].Next
	}
	return entries[0].Schedule.Next(time.Now())
}

func (s *Scheduler) runScheduled() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if err := s.CheckNow(ctx); err != nil {
		s.logger.Warn("Scheduled check failed", "error", err)
	}
}

// CheckNow runs one check immediately.
func (s *Scheduler) CheckNow(ctx context.Context) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	accepted, err := s.refresher.Refresh(ctx)
	duration := time.Since(start)

	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	if !accepted {
		s.logger.Info("Check skipped, another fetch in flight")
		return nil
	}

	s.logger.Info("Check completed", "duration_ms", duration.Milliseconds())
	return nil
}
