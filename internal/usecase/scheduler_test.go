package usecase

import (
	"context"
	"testing"
	"time"
)

type fakeDriver struct {
	started bool
	stopped bool
	job     func(time.Time)
}

func (d *fakeDriver) Start(_ context.Context, job func(time.Time)) error {
	d.started = true
	d.job = job
	return nil
}

func (d *fakeDriver) Stop(context.Context) error {
	d.stopped = true
	return nil
}

func TestSchedulerRunsPipeline(t *testing.T) {
	t.Parallel()

	store := &fakeStore{snap: emptySnapshot()}
	pipeline := NewPipeline(PipelineDeps{Store: store})
	driver := &fakeDriver{}

	s := NewScheduler(driver, pipeline, RunOptions{}, nil)
	var reports []Report
	s.OnReport(func(r Report) { reports = append(reports, r) })

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if !driver.started || driver.job == nil {
		t.Fatal("job was not registered")
	}

	driver.job(time.Date(2026, 6, 1, 6, 0, 0, 0, time.UTC))
	if !store.saved {
		t.Fatal("scheduled run did not save")
	}
	if len(reports) != 1 || !reports[0].Today.Equal(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected reports: %+v", reports)
	}

	if err := s.Stop(context.Background()); err != nil || !driver.stopped {
		t.Fatalf("Stop error: %v stopped=%v", err, driver.stopped)
	}
}

func TestSchedulerSkipsReportOnFailure(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{}
	s := NewScheduler(driver, NewPipeline(PipelineDeps{}), RunOptions{}, nil)
	called := false
	s.OnReport(func(Report) { called = true })

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	driver.job(time.Now())
	if called {
		t.Fatal("report callback invoked for a failed run")
	}
}
