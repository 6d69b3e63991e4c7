package usecase

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"NewsShorts/internal/domain"
	"NewsShorts/internal/ports"
)

// Scheduler wires the cron driver with the pipeline use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	modes    []domain.Mode
	timeout  time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	last []domain.RunReport
}

// NewScheduler returns a helper to start/stop recurring runs of modes.
// A positive timeout bounds every triggered run.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, modes []domain.Mode, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		driver:   driver,
		pipeline: pipeline,
		modes:    modes,
		timeout:  timeout,
		logger:   logger.With("component", "scheduler"),
	}
}

// Start registers the pipeline with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		s.RunOnce(ctx, trigger)
	}

	return s.driver.Start(ctx, job)
}

// RunOnce executes every mode once and remembers the reports.
func (s *Scheduler) RunOnce(ctx context.Context, trigger time.Time) []domain.RunReport {
	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.logger.Info("scheduled run triggered", "trigger", trigger)
	reports, err := s.pipeline.RunAll(runCtx, s.modes)
	if err != nil {
		s.logger.Error("scheduled run failed", "error", err)
	}

	s.mu.Lock()
	s.last = reports
	s.mu.Unlock()
	return reports
}

// LastReports returns the reports of the most recent triggered run.
func (s *Scheduler) LastReports() []domain.RunReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.last)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
