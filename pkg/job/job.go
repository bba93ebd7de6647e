package job

import "context"

// Params carries the parsed, validated arguments for a single job run.
// Concrete jobs type-assert the fields they need out of Extra.
type Params struct {
	JobID string
	Extra map[string]any
}

// Result summarizes a completed job run for the ledger and for alerting.
type Result struct {
	RowsProcessed int
	RowsUpserted  int
	TablesTouched []string
	Warnings      []string
}

// Job is the runtime contract every scheduled unit of work implements:
// validate its parameters, execute the work, then clean up regardless of
// outcome. The scheduler calls these in order and never calls Execute
// without a successful Validate.
type Job interface {
	ID() string
	Validate(ctx context.Context, params Params) error
	Execute(ctx context.Context, params Params) (*Result, error)
	Cleanup(ctx context.Context) error
}

// Base provides a no-op Cleanup so concrete jobs only implement it when
// they actually hold a resource worth releasing.
type Base struct{}

func (Base) Cleanup(context.Context) error { return nil }
