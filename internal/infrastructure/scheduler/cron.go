package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"NewsShorts/internal/ports"
)

// CronScheduler triggers jobs on a standard five-field cron expression.
// Overlapping triggers are skipped while a job is still running.
type CronScheduler struct {
	spec     string
	schedule cron.Schedule
	location *time.Location
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	stopped chan struct{}
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler validates spec. A nil location means UTC.
func NewCronScheduler(spec string, location *time.Location, logger *slog.Logger) (*CronScheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", spec, err)
	}
	if location == nil {
		location = time.UTC
	}
	return &CronScheduler{
		spec:     spec,
		schedule: schedule,
		location: location,
		logger:   logger,
	}, nil
}

// Next reports the first trigger strictly after now.
func (c *CronScheduler) Next(now time.Time) time.Time {
	return c.schedule.Next(now.In(c.location))
}

// Start registers job and begins ticking. The scheduler stops on its own when ctx ends.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	log := cronLogger{logger: c.logger}
	cr := cron.New(
		cron.WithLocation(c.location),
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)
	if _, err := cr.AddFunc(c.spec, func() { job(time.Now().In(c.location)) }); err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}
	cr.Start()

	stopped := make(chan struct{})
	c.cron = cr
	c.stopped = stopped
	c.logger.Info("scheduler started", "cron", c.spec, "timezone", c.location.String(), "next", c.Next(time.Now()))

	go func() {
		select {
		case <-ctx.Done():
			_ = c.Stop(context.Background())
		case <-stopped:
		}
	}()
	return nil
}

// Stop halts new triggers and waits for a running job until ctx ends.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	cr := c.cron
	if cr == nil {
		c.mu.Unlock()
		return nil
	}
	close(c.stopped)
	c.cron = nil
	c.stopped = nil
	c.mu.Unlock()

	done := cr.Stop()
	select {
	case <-done.Done():
		c.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts slog to cron.Logger. Cron's chatty info lines go to debug.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
