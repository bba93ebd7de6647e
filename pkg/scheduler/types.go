// Package scheduler drives job execution on cron and interval triggers
// through a bounded worker pool, enforcing at most one running instance
// per job, checking declared dependencies, and retrying failed runs with
// exponential backoff before giving up.
package scheduler

import (
	"time"

	"github.com/google/uuid"

	"github.com/aicc6/weatherflick-batch/pkg/job"
)

// TriggerKind distinguishes how a job definition is scheduled.
type TriggerKind string

const (
	TriggerCron     TriggerKind = "cron"
	TriggerInterval TriggerKind = "interval"
)

// Definition declares one schedulable job: its runtime, its trigger, its
// dependencies, and its retry/timeout policy.
type Definition struct {
	ID            string
	Job           job.Job
	Trigger       TriggerKind
	CronExpr      string        // used when Trigger == TriggerCron
	Interval      time.Duration // used when Trigger == TriggerInterval
	DependsOn     []string      // job IDs that must have succeeded within DependencyWindow
	DependencyWindow time.Duration
	Timeout       time.Duration
	MaxRetries    uint
	RetryBackoff  time.Duration
	MisfireGrace  time.Duration
}

// ExecutionStatus is the lifecycle state of a single job run.
type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "pending"
	StatusRunning   ExecutionStatus = "running"
	StatusSucceeded ExecutionStatus = "succeeded"
	StatusFailed    ExecutionStatus = "failed"
	StatusSkipped   ExecutionStatus = "skipped"
	StatusTimeout   ExecutionStatus = "timeout"
	StatusCancelled ExecutionStatus = "cancelled"
)

// Execution is one durable record of a job run, written to the ledger at
// start and again at completion.
type Execution struct {
	ID         uuid.UUID
	JobID      string
	Status     ExecutionStatus
	StartedAt  time.Time
	FinishedAt *time.Time
	RowsProcessed int
	RowsUpserted  int
	Error      string
}
