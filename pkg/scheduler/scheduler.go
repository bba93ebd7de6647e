package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	retry "github.com/avast/retry-go"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/semaphore"

	"github.com/aicc6/weatherflick-batch/internal/telemetry"
	"github.com/aicc6/weatherflick-batch/pkg/job"
	"github.com/aicc6/weatherflick-batch/pkg/notify"
)

// Scheduler triggers job definitions on their configured cron or interval
// schedule and runs them through a bounded worker pool.
type Scheduler struct {
	defs     map[string]*Definition
	ledger   *Ledger
	notifier notify.Notifier
	logger   *slog.Logger
	location *time.Location

	pool *semaphore.Weighted
	cron *cron.Cron

	mu      sync.Mutex
	running map[string]bool
}

// New creates a Scheduler with the given worker pool size and timezone.
func New(ledger *Ledger, notifier notify.Notifier, poolSize int, location *time.Location, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		defs:     make(map[string]*Definition),
		ledger:   ledger,
		notifier: notifier,
		logger:   logger,
		location: location,
		pool:     semaphore.NewWeighted(int64(poolSize)),
		cron:     cron.New(cron.WithLocation(location), cron.WithSeconds()),
		running:  make(map[string]bool),
	}
}

// Register adds a job definition to the scheduler. Must be called before Start.
func (s *Scheduler) Register(def *Definition) error {
	if def.ID == "" {
		return fmt.Errorf("job definition missing ID")
	}
	s.defs[def.ID] = def

	switch def.Trigger {
	case TriggerCron:
		_, err := s.cron.AddFunc(def.CronExpr, func() { s.fire(context.Background(), def) })
		if err != nil {
			return fmt.Errorf("registering cron trigger for %s: %w", def.ID, err)
		}
	case TriggerInterval:
		// interval triggers are started as tickers in Start
	default:
		return fmt.Errorf("job %s: unknown trigger kind %q", def.ID, def.Trigger)
	}
	return nil
}

// Definitions returns every registered job definition, for the operator's
// "list" and "status" subcommands.
func (s *Scheduler) Definitions() []*Definition {
	out := make([]*Definition, 0, len(s.defs))
	for _, d := range s.defs {
		out = append(out, d)
	}
	return out
}

// Start begins the cron scheduler and any interval-triggered jobs' ticker
// loops. Blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	defer s.cron.Stop()

	var wg sync.WaitGroup
	for _, def := range s.defs {
		if def.Trigger != TriggerInterval {
			continue
		}
		wg.Add(1)
		go func(def *Definition) {
			defer wg.Done()
			s.runIntervalLoop(ctx, def)
		}(def)
	}

	<-ctx.Done()
	s.logger.Info("scheduler stopping, waiting for interval loops to drain")
	wg.Wait()
}

// runIntervalLoop fires def on a fixed ticker until ctx is cancelled. This
// mirrors the teacher's periodic top-up loop: run once immediately, then
// on every tick.
func (s *Scheduler) runIntervalLoop(ctx context.Context, def *Definition) {
	s.fire(ctx, def)

	ticker := time.NewTicker(def.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx, def)
		}
	}
}

// fire is called by a trigger when a job's scheduled time arrives. It
// enforces the at-most-one-running invariant, checks dependencies, applies
// the misfire grace window, then dispatches into the worker pool.
func (s *Scheduler) fire(ctx context.Context, def *Definition) {
	fireTime := time.Now()

	running, err := s.ledger.IsRunning(ctx, def.ID)
	if err != nil {
		s.logger.Error("checking running state", "job", def.ID, "error", err)
		return
	}
	if running {
		s.logger.Warn("skipping fire, job already running", "job", def.ID)
		return
	}

	for _, dep := range def.DependsOn {
		window := def.DependencyWindow
		if window <= 0 {
			window = 24 * time.Hour
		}
		ok, err := s.ledger.DependencySatisfied(ctx, dep, window, fireTime)
		if err != nil {
			s.logger.Error("checking dependency", "job", def.ID, "depends_on", dep, "error", err)
			return
		}
		if !ok {
			s.logger.Warn("skipping fire, dependency not satisfied", "job", def.ID, "depends_on", dep)
			s.recordSkip(ctx, def.ID, fmt.Sprintf("dependency %s not satisfied within %s", dep, window))
			return
		}
	}

	if !s.pool.TryAcquire(1) {
		if def.MisfireGrace <= 0 {
			s.logger.Warn("skipping fire, worker pool full and no misfire grace configured", "job", def.ID)
			return
		}
		s.logger.Warn("worker pool full, waiting within misfire grace window", "job", def.ID, "grace", def.MisfireGrace)
		graceCtx, cancel := context.WithTimeout(ctx, def.MisfireGrace)
		defer cancel()
		if err := s.pool.Acquire(graceCtx, 1); err != nil {
			s.logger.Error("misfire grace window elapsed, dropping run", "job", def.ID)
			return
		}
	}

	go func() {
		defer s.pool.Release(1)
		_ = s.run(ctx, def)
	}()
}

// recordSkip writes a start/end pair with StatusSkipped for a fire that
// never dispatched into the worker pool, so a skipped run is as visible in
// the ledger as an executed one instead of existing only as a log line.
func (s *Scheduler) recordSkip(ctx context.Context, jobID, reason string) {
	execID, err := s.ledger.RecordStart(ctx, jobID)
	if err != nil {
		s.logger.Error("recording skipped job start", "job", jobID, "error", err)
		return
	}
	telemetry.JobExecutionsTotal.WithLabelValues(jobID, string(StatusSkipped)).Inc()
	if err := s.ledger.RecordEnd(ctx, execID, StatusSkipped, 0, 0, reason); err != nil {
		s.logger.Error("recording skipped job end", "job", jobID, "error", err)
	}
}

// run executes one job instance with retry and timeout, recording the
// outcome to the ledger and alerting on terminal failure. It returns the
// job's final error so RunOnce can report it back to the operator CLI's
// exit code.
func (s *Scheduler) run(ctx context.Context, def *Definition) error {
	execID, err := s.ledger.RecordStart(ctx, def.ID)
	if err != nil {
		s.logger.Error("recording job start", "job", def.ID, "error", err)
		return err
	}

	timeout := def.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}

	params := job.Params{JobID: def.ID}
	var result *job.Result
	started := time.Now()

	runErr := retry.Do(
		func() error {
			runCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			if err := def.Job.Validate(runCtx, params); err != nil {
				return retry.Unrecoverable(err)
			}

			r, err := def.Job.Execute(runCtx, params)
			result = r
			if err != nil {
				var jerr *job.Error
				if errors.As(err, &jerr) && !jerr.Retryable() {
					return retry.Unrecoverable(err)
				}
				return err
			}
			return nil
		},
		retry.Attempts(def.MaxRetries+1),
		retry.Delay(def.RetryBackoff),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn("retrying job", "job", def.ID, "attempt", n, "error", err)
		}),
	)

	if cerr := def.Job.Cleanup(ctx); cerr != nil {
		s.logger.Error("job cleanup failed", "job", def.ID, "error", cerr)
	}

	duration := time.Since(started)
	telemetry.JobDuration.WithLabelValues(def.ID).Observe(duration.Seconds())

	if runErr != nil {
		status := StatusFailed
		switch {
		case errors.Is(runErr, context.DeadlineExceeded):
			status = StatusTimeout
		case errors.Is(runErr, context.Canceled):
			status = StatusCancelled
		}
		telemetry.JobExecutionsTotal.WithLabelValues(def.ID, string(status)).Inc()
		_ = s.ledger.RecordEnd(ctx, execID, status, resultRows(result), resultUpserted(result), runErr.Error())
		s.logger.Error("job failed", "job", def.ID, "status", status, "error", runErr)
		if s.notifier != nil {
			s.notifier.NotifyJobFailure(ctx, def.ID, runErr)
		}
		return runErr
	}

	telemetry.JobExecutionsTotal.WithLabelValues(def.ID, string(StatusSucceeded)).Inc()
	_ = s.ledger.RecordEnd(ctx, execID, StatusSucceeded, resultRows(result), resultUpserted(result), "")
	s.logger.Info("job succeeded", "job", def.ID, "duration", duration, "rows_processed", resultRows(result))
	return nil
}

func resultRows(r *job.Result) int {
	if r == nil {
		return 0
	}
	return r.RowsProcessed
}

func resultUpserted(r *job.Result) int {
	if r == nil {
		return 0
	}
	return r.RowsUpserted
}

// RunOnce triggers a single ad hoc run of jobID outside its normal
// schedule, bypassing the worker pool so "run <job-id>" always executes
// immediately. Used by the operator CLI.
func (s *Scheduler) RunOnce(ctx context.Context, jobID string) error {
	def, ok := s.defs[jobID]
	if !ok {
		return fmt.Errorf("unknown job %q", jobID)
	}
	return s.run(ctx, def)
}
