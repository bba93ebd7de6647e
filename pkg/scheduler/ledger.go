package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ledger durably records every job execution's lifecycle: a start record
// written before Execute runs, and an end record written once it returns,
// so a crash mid-run leaves a visible "running" row rather than silence.
type Ledger struct {
	pool *pgxpool.Pool
}

// NewLedger creates a Ledger backed by pool.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// RecordStart inserts the start-of-run row and returns its execution ID.
func (l *Ledger) RecordStart(ctx context.Context, jobID string) (uuid.UUID, error) {
	id := uuid.New()
	query := `INSERT INTO batch_job_executions (id, job_id, status, started_at)
		VALUES ($1, $2, $3, $4)`
	if _, err := l.pool.Exec(ctx, query, id, jobID, StatusRunning, time.Now()); err != nil {
		return uuid.Nil, fmt.Errorf("recording job start: %w", err)
	}
	return id, nil
}

// RecordEnd writes the terminal status and result summary for an
// already-started execution.
func (l *Ledger) RecordEnd(ctx context.Context, id uuid.UUID, status ExecutionStatus, rowsProcessed, rowsUpserted int, errMsg string) error {
	query := `UPDATE batch_job_executions
		SET status = $2, finished_at = $3, rows_processed = $4, rows_upserted = $5, error = $6
		WHERE id = $1`
	_, err := l.pool.Exec(ctx, query, id, status, time.Now(), rowsProcessed, rowsUpserted, nullIfEmpty(errMsg))
	if err != nil {
		return fmt.Errorf("recording job end: %w", err)
	}
	return nil
}

// LastSuccess returns the most recent successful execution time for jobID,
// or the zero time if it has never succeeded. Used by dependency checks.
func (l *Ledger) LastSuccess(ctx context.Context, jobID string) (time.Time, error) {
	query := `SELECT finished_at FROM batch_job_executions
		WHERE job_id = $1 AND status = $2 AND finished_at IS NOT NULL
		ORDER BY finished_at DESC LIMIT 1`
	var t time.Time
	err := l.pool.QueryRow(ctx, query, jobID, StatusSucceeded).Scan(&t)
	if err != nil {
		if err == pgx.ErrNoRows {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("querying last success for %s: %w", jobID, err)
	}
	return t, nil
}

// IsRunning reports whether jobID currently has an execution in the
// running state, enforcing the at-most-one-running invariant.
func (l *Ledger) IsRunning(ctx context.Context, jobID string) (bool, error) {
	query := `SELECT count(*) FROM batch_job_executions WHERE job_id = $1 AND status = $2`
	var n int
	if err := l.pool.QueryRow(ctx, query, jobID, StatusRunning).Scan(&n); err != nil {
		return false, fmt.Errorf("checking running state for %s: %w", jobID, err)
	}
	return n > 0, nil
}

// DependencySatisfied reports whether dependsOnJobID succeeded within
// window of now.
func (l *Ledger) DependencySatisfied(ctx context.Context, dependsOnJobID string, window time.Duration, now time.Time) (bool, error) {
	last, err := l.LastSuccess(ctx, dependsOnJobID)
	if err != nil {
		return false, err
	}
	if last.IsZero() {
		return false, nil
	}
	return now.Sub(last) <= window, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
