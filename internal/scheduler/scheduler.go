// Package scheduler drives the engine's jobs on fixed intervals until the
// context is cancelled.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/auroralabs/aurora-alerts/internal/observability"
)

// Job is one named unit of periodic work. Run receives a context bounded by
// the scheduler's per-run timeout.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs registered jobs on their intervals. Each job gets its own
// ticker goroutine; runs of the same job never overlap.
type Scheduler struct {
	jobs       []Job
	runTimeout time.Duration
	logger     *slog.Logger
	metrics    *observability.Metrics
	clock      clockwork.Clock
}

// New creates a Scheduler with the given per-run timeout.
func New(runTimeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{
		runTimeout: runTimeout,
		logger:     logger,
		metrics:    metrics,
		clock:      clockwork.NewRealClock(),
	}
}

// SetClock replaces the scheduler's clock. Tests only.
func (s *Scheduler) SetClock(c clockwork.Clock) { s.clock = c }

// Add registers a job. Jobs with a non-positive interval are rejected.
func (s *Scheduler) Add(job Job) error {
	if job.Interval <= 0 {
		return fmt.Errorf("job %q: interval must be positive", job.Name)
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Run executes the job loops until the context is cancelled. It always
// returns nil; job failures are logged and counted, never fatal.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
	s.metrics.SchedulerRunning.Set(1)
	defer s.metrics.SchedulerRunning.Set(0)

	var wg sync.WaitGroup
	for _, job := range s.jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			s.runLoop(ctx, job)
		}(job)
	}
	wg.Wait()

	s.logger.Info("scheduler stopped", "reason", ctx.Err())
	return nil
}

func (s *Scheduler) runLoop(ctx context.Context, job Job) {
	ticker := s.clock.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.runOnce(ctx, job)
		}
	}
}

// runOnce executes a single job run with the per-run timeout, containing
// panics so a faulty job cannot take the scheduler down.
func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	runCtx := ctx
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", "job", job.Name, "panic", r)
			s.metrics.JobRuns.WithLabelValues(job.Name, "error").Inc()
		}
	}()

	err := job.Run(runCtx)
	s.metrics.JobDuration.WithLabelValues(job.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Error("job failed", "job", job.Name, "error", err)
		s.metrics.JobRuns.WithLabelValues(job.Name, "error").Inc()
		return
	}
	s.metrics.JobRuns.WithLabelValues(job.Name, "success").Inc()
}
