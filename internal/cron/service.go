package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/backoffice-backend/pkg/logger"
	"github.com/angelmondragon/backoffice-backend/pkg/metrics"
)

const (
	defaultInterval = time.Hour
	releaseTimeout  = 5 * time.Second
)

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
	// JobTimeout bounds a single job run. Defaults to Interval.
	JobTimeout time.Duration
}

// Service runs the registered sweeps every interval. The lock keeps
// concurrent workers from sweeping the same cycle twice.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	}
	s := &Service{
		logg:       params.Logger,
		registry:   params.Registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   params.Interval,
		jobTimeout: params.JobTimeout,
	}
	if s.registry == nil {
		s.registry = &Registry{}
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.jobTimeout <= 0 {
		s.jobTimeout = s.interval
	}
	return s, nil
}

// Run starts a cycle right away, then one per interval until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.logg.Error(ctx, "cron cycle failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce runs every job once while holding the lock. Job failures are
// logged and counted but do not stop later jobs; only lock errors return.
func (s *Service) RunOnce(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	jobs := s.registry.Jobs()
	if !locked {
		s.logg.Info(ctx, "cron lock held by another worker, skipping cycle")
		for _, job := range jobs {
			s.metrics.IncRun(job.Name(), metrics.CronResultSkipped)
		}
		return nil
	}
	defer s.release(ctx)

	var failures error
	for _, job := range jobs {
		failures = multierr.Append(failures, s.runJob(ctx, job))
	}
	failed := len(multierr.Errors(failures))
	cycleCtx := s.logg.WithFields(ctx, map[string]any{
		"jobs":        len(jobs),
		"failed_jobs": failed,
	})
	if failed > 0 {
		s.logg.Warn(s.logg.WithField(cycleCtx, "error", failures.Error()), "cron cycle finished with failures")
		return nil
	}
	s.logg.Info(cycleCtx, "cron cycle finished")
	return nil
}

// release runs even when ctx is already canceled so a stopping worker
// does not hold the lease until its TTL.
func (s *Service) release(ctx context.Context) {
	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := s.lock.Release(relCtx); err != nil {
		s.logg.Error(ctx, "cron lock release failed", err)
	}
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	name := job.Name()
	jobCtx := s.logg.WithField(ctx, "job", name)
	runCtx, cancel := context.WithTimeout(jobCtx, s.jobTimeout)
	defer cancel()

	start := time.Now()
	processed, err := job.Run(runCtx)
	elapsed := time.Since(start)

	s.metrics.ObserveDuration(name, elapsed)
	s.metrics.AddProcessed(name, processed)
	jobCtx = s.logg.WithFields(jobCtx, map[string]any{
		"duration_ms": elapsed.Milliseconds(),
		"processed":   processed,
	})
	if err != nil {
		s.metrics.IncRun(name, metrics.CronResultFailure)
		s.logg.Error(jobCtx, "cron job failed", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	s.metrics.IncRun(name, metrics.CronResultSuccess)
	s.logg.Info(jobCtx, "cron job finished")
	return nil
}
