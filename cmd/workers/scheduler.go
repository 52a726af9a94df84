package main

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one unit of scheduled work
type Job interface {
	Run(ctx context.Context) error
}

// JobFunc adapts a function to Job
type JobFunc func(ctx context.Context) error

func (f JobFunc) Run(ctx context.Context) error { return f(ctx) }

// Scheduler runs jobs on cron schedules. A run that is still going when its
// next tick fires is skipped, and a panicking job does not stop the others.
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration
	jobs    []string
}

// NewScheduler creates a scheduler whose job runs are bounded by timeout
func NewScheduler(logger *zap.Logger, timeout time.Duration) *Scheduler {
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
		logger:  logger,
		timeout: timeout,
	}
}

// Add registers job under name. An empty schedule disables the job.
func (s *Scheduler) Add(ctx context.Context, name, schedule string, job Job) error {
	if schedule == "" {
		s.logger.Info("Job disabled", zap.String("job", name))
		return nil
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.runJob(ctx, name, job) }); err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, schedule, err)
	}
	s.jobs = append(s.jobs, name)
	s.logger.Info("Job scheduled", zap.String("job", name), zap.String("schedule", schedule))
	return nil
}

// Jobs lists the names of the scheduled jobs
func (s *Scheduler) Jobs() []string {
	return append([]string(nil), s.jobs...)
}

// runJob executes one run and logs its outcome
func (s *Scheduler) runJob(ctx context.Context, name string, job Job) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	err := job.Run(ctx)
	if err != nil {
		s.logger.Error("Job failed",
			zap.String("job", name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return err
	}
	s.logger.Debug("Job completed", zap.String("job", name), zap.Duration("duration", time.Since(start)))
	return nil
}

// Start runs the schedule until ctx is cancelled, then waits for running jobs
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	s.logger.Info("Scheduler started", zap.Strings("jobs", s.jobs))

	<-ctx.Done()
	s.logger.Info("Scheduler shutting down")
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}
