package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job represents a function to be executed by the scheduler
type Job func(ctx context.Context)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Scheduler runs a job on a cron schedule. A run that is still in progress
// causes the next tick or manual trigger to be skipped.
type Scheduler struct {
	logger    *slog.Logger
	spec      string
	schedule  cron.Schedule
	job       Job
	cron      *cron.Cron
	triggerCh chan struct{}
	done      chan struct{}
}

// New creates a new scheduler instance. spec is a five-field cron expression
// or a descriptor such as "@every 10m".
func New(logger *slog.Logger, spec string, loc *time.Location, job Job) (*Scheduler, error) {
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.UTC
	}

	cl := cronLogger{logger}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	return &Scheduler{
		logger:    logger,
		spec:      spec,
		schedule:  schedule,
		job:       job,
		cron:      c,
		triggerCh: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}, nil
}

// Start begins the scheduler execution and runs the job once immediately
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting scheduler", "schedule", s.spec)

	// the chain wraps the job once so ticks and triggers share the skip guard
	run := s.cron.Entry(s.cron.Schedule(s.schedule, cron.FuncJob(func() {
		s.executeJob(ctx)
	}))).WrappedJob

	s.cron.Start()

	go func() {
		s.logger.Info("Running initial job execution")
		run.Run()
	}()

	go s.loop(ctx, run)
}

// Stop stops the scheduler and waits for a running job to finish
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	close(s.done)
	<-s.cron.Stop().Done()
}

// TriggerCheck manually triggers a job execution
func (s *Scheduler) TriggerCheck(ctx context.Context) error {
	select {
	case s.triggerCh <- struct{}{}:
		s.logger.Info("Manual trigger scheduled")
	default:
		s.logger.Warn("Manual trigger ignored - already pending")
	}
	return nil
}

// Run starts the scheduler and blocks until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) {
	s.Start(ctx)
	<-ctx.Done()
	s.Stop()
}

func (s *Scheduler) loop(ctx context.Context, run cron.Job) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-s.triggerCh:
			s.logger.Info("Manual trigger - executing job")
			go run.Run()
		}
	}
}

// executeJob runs the job with logging
func (s *Scheduler) executeJob(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	s.logger.Debug("Job execution started")
	s.job(ctx)
	s.logger.Debug("Job execution completed", "duration", time.Since(start))
}

// cronLogger adapts slog to cron's logger
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
