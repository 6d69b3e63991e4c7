package usecase

import (
	"context"
	"testing"
	"time"

	"NewsShorts/internal/domain"
	"NewsShorts/internal/logging"
)

// immediateDriver fires the job once, synchronously, on Start.
type immediateDriver struct {
	started bool
	stopped bool
}

func (d *immediateDriver) Start(_ context.Context, job func(time.Time)) error {
	d.started = true
	job(time.Date(2026, 7, 3, 2, 0, 0, 0, time.UTC))
	return nil
}

func (d *immediateDriver) Stop(context.Context) error {
	d.stopped = true
	return nil
}

func TestSchedulerRunsModesAndKeepsLastReports(t *testing.T) {
	t.Parallel()

	f := newFixture(items("a", "b"))
	p := f.pipeline(PipelineOptions{})
	driver := &immediateDriver{}
	modes := []domain.Mode{domain.CategoriesMode("in"), domain.KeywordsMode("in")}
	s := NewScheduler(driver, p, modes, time.Minute, logging.Discard())

	if len(s.LastReports()) != 0 {
		t.Fatalf("expected no reports before first run")
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !driver.started {
		t.Fatalf("driver not started")
	}

	last := s.LastReports()
	if len(last) != 2 {
		t.Fatalf("reports = %d, want 2", len(last))
	}
	if last[0].Mode.Kind != domain.ModeCategories || last[0].Count(domain.StatusPublished) != 2 {
		t.Fatalf("first report = %+v", last[0])
	}
	if last[1].Mode.Kind != domain.ModeKeywords || last[1].Queries != 0 {
		t.Fatalf("second report = %+v", last[1])
	}

	if err := s.Stop(context.Background()); err != nil || !driver.stopped {
		t.Fatalf("stop: %v", err)
	}
}

func TestSchedulerRunTimeoutBoundsRun(t *testing.T) {
	t.Parallel()

	f := newFixture(items("a"))
	f.publisher.delay = 50 * time.Millisecond
	p := f.pipeline(PipelineOptions{})
	s := NewScheduler(nil, p, []domain.Mode{domain.CategoriesMode("in")}, time.Millisecond, logging.Discard())

	reports := s.RunOnce(context.Background(), time.Now())
	if len(reports) > 1 {
		t.Fatalf("reports = %d", len(reports))
	}
	if f.history.(*memHistory).outcomes()["a"] == domain.OutcomeFailed {
		t.Fatalf("timed out item must not be recorded as failed")
	}
}
