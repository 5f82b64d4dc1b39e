// Package scheduler runs the circulation scans on tickers and on demand.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"libraflow/internal/circulation"
)

// Scanner is the part of the engine the scheduler drives.
type Scanner interface {
	ScanDueDateReminders(ctx context.Context) (int, error)
	ScanExpiredReservations(ctx context.Context) (int, error)
	ScanOverdue(ctx context.Context) (int, error)
}

// Job is one periodic scan.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int, error)

	trigger chan struct{}
}

// Jobs returns the three circulation scans with their intervals.
func Jobs(s Scanner, reminders, expiry, overdue time.Duration) []*Job {
	return []*Job{
		{Name: circulation.JobReminders, Interval: reminders, Run: s.ScanDueDateReminders},
		{Name: circulation.JobExpired, Interval: expiry, Run: s.ScanExpiredReservations},
		{Name: circulation.JobOverdue, Interval: overdue, Run: s.ScanOverdue},
	}
}

// Scheduler runs each job on its own ticker. Trigger requests an extra run
// without waiting for the ticker.
type Scheduler struct {
	jobs   map[string]*Job
	order  []string
	logger *slog.Logger
}

type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

func New(jobs []*Job, opts ...Option) *Scheduler {
	s := &Scheduler{
		jobs:   make(map[string]*Job, len(jobs)),
		logger: slog.Default(),
	}
	for _, j := range jobs {
		j.trigger = make(chan struct{}, 1)
		s.jobs[j.Name] = j
		s.order = append(s.order, j.Name)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Trigger asks for a run of the named job. It never blocks and reports
// false when the job is unknown or a run is already pending.
func (s *Scheduler) Trigger(name string) bool {
	j, ok := s.jobs[name]
	if !ok {
		return false
	}
	select {
	case j.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// RunOnce runs the named job synchronously.
func (s *Scheduler) RunOnce(ctx context.Context, name string) (int, error) {
	j, ok := s.jobs[name]
	if !ok {
		return 0, fmt.Errorf("unknown job %q", name)
	}
	return j.Run(ctx)
}

// Run blocks until ctx is done. A failing scan is logged and retried on
// the next tick.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range s.order {
		j := s.jobs[name]
		g.Go(func() error { return s.loop(ctx, j) })
	}
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, j *Job) error {
	var tick <-chan time.Time
	if j.Interval > 0 {
		ticker := time.NewTicker(j.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
		case <-j.trigger:
		}

		n, err := j.Run(ctx)
		if err != nil {
			s.logger.ErrorContext(ctx, "scan failed", "job", j.Name, "error", err)
			continue
		}
		s.logger.DebugContext(ctx, "scan completed", "job", j.Name, "rows", n)
	}
}
