package usecase

import (
	"context"
	"log/slog"
	"time"

	"ConferenceScanner/internal/ports"
)

// Scheduler wires the cron-like driver with the pipeline use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	opts     RunOptions
	logger   *slog.Logger
	onReport func(Report)
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, opts RunOptions, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, pipeline: pipeline, opts: opts, logger: logger}
}

// OnReport registers a callback invoked after every successful run.
func (s *Scheduler) OnReport(fn func(Report)) {
	s.onReport = fn
}

// Start registers the pipeline with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		report, err := s.pipeline.Run(ctx, trigger, s.opts)
		if err != nil {
			if s.logger != nil {
				s.logger.Error("scheduled run failed", "run_id", report.RunID, "error", err)
			}
			return
		}
		if s.onReport != nil {
			s.onReport(report)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
