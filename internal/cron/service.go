package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/mealbox-backend/internal/weekcal"
	"github.com/angelmondragon/mealbox-backend/pkg/logger"
	"github.com/angelmondragon/mealbox-backend/pkg/metrics"
)

// ErrLocked is returned by Trigger when another instance holds the run lock.
var ErrLocked = errors.New("cron run already in progress")

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Calendar *weekcal.Calendar
	// Hour and Minute are the wall-clock time of the daily run in the
	// calendar's location.
	Hour   int
	Minute int
}

// Service executes registered cron jobs once a day at a fixed local time.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	calendar *weekcal.Calendar
	hour     int
	minute   int

	after func(time.Duration) <-chan time.Time
	wg    sync.WaitGroup
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	if params.Calendar == nil {
		return nil, fmt.Errorf("calendar required")
	}
	if params.Hour < 0 || params.Hour > 23 || params.Minute < 0 || params.Minute > 59 {
		return nil, fmt.Errorf("invalid schedule %02d:%02d", params.Hour, params.Minute)
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		calendar: params.Calendar,
		hour:     params.Hour,
		minute:   params.Minute,
		after:    time.After,
	}, nil
}

// NextRun reports when the loop will fire next, relative to at.
func (s *Service) NextRun(at time.Time) time.Time {
	return s.calendar.NextRun(at, s.hour, s.minute)
}

// Run sleeps until each scheduled time and runs all jobs, until the context
// is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		now := s.calendar.Now()
		next := s.NextRun(now)
		s.logg.Info(s.logg.WithField(ctx, "next_run", next.Format(time.RFC3339)), "cron service waiting")

		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			s.wg.Wait()
			return ctx.Err()
		case <-s.after(next.Sub(now)):
			if err := s.runCycle(ctx); err != nil {
				s.logg.Error(ctx, "scheduled run failed", err)
			}
		}
	}
}

// Trigger runs every job once in the background and returns as soon as the
// lock is held. The run outlives ctx.
func (s *Service) Trigger(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		return ErrLocked
	}
	runCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(runCtx)
		s.runJobs(runCtx)
	}()
	return nil
}

// Wait blocks until triggered runs have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) runCycle(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "another cron instance is running; skipping this cycle")
		return nil
	}
	defer s.release(ctx)
	s.runJobs(ctx)
	return nil
}

func (s *Service) release(ctx context.Context) {
	if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
		s.logg.Error(ctx, "failed to release cron lock", err)
	}
}

func (s *Service) runJobs(ctx context.Context) {
	s.logg.Info(ctx, "scheduled run starting")
	for _, job := range s.registry.Jobs() {
		s.runJob(ctx, job)
	}
	s.logg.Info(ctx, "scheduled run complete")
}

func (s *Service) runJob(ctx context.Context, job Job) {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err := job.Run(jobCtx)
	duration := time.Since(start)
	s.metrics.ObserveDuration(job.Name(), duration)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.metrics.IncFailure(job.Name())
		return
	}
	s.logg.Info(jobCtx, "job completed")
	s.metrics.IncSuccess(job.Name())
}
