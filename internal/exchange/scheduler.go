package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
)

// NextRun returns the first tick of the cron expression after ref.
func NextRun(cronExpr string, ref time.Time) (time.Time, error) {
	if !gronx.New().IsValid(cronExpr) {
		return time.Time{}, fmt.Errorf("invalid cron expression %q", cronExpr)
	}
	next, err := gronx.NextTickAfter(cronExpr, ref, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("computing next tick for %q: %w", cronExpr, err)
	}
	return next, nil
}

// Scheduler runs a job on a cron schedule until its context ends.
// A failed run is logged and the next tick still fires.
type Scheduler struct {
	schedule string
	job      func(context.Context) error
	logger   *slog.Logger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// NewScheduler validates schedule. job is typically a closure over
// Service.Backup.
func NewScheduler(schedule string, job func(context.Context) error, logger *slog.Logger) (*Scheduler, error) {
	if _, err := NextRun(schedule, time.Now()); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		schedule: schedule,
		job:      job,
		logger:   logger,
		now:      time.Now,
		after:    time.After,
	}, nil
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		now := s.now()
		next, err := NextRun(s.schedule, now)
		if err != nil {
			s.logger.Error("backup schedule stopped", "error", err)
			return
		}
		s.logger.Debug("next backup scheduled", "at", next)

		select {
		case <-ctx.Done():
			return
		case <-s.after(next.Sub(now)):
		}
		if ctx.Err() != nil {
			return
		}

		start := s.now()
		if err := s.job(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("scheduled backup failed", "error", err)
			continue
		}
		s.logger.Info("scheduled backup finished", "duration_ms", s.now().Sub(start).Milliseconds())
	}
}
