package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/aicc6/weatherflick-batch/pkg/archive"
	"github.com/aicc6/weatherflick-batch/pkg/keyregistry"
)

// RetentionJob purges expired raw-archive rows and resets/reactivates
// provider keys. It supplements the core sync jobs: without it the raw
// archive grows unbounded and cooled-down keys never rejoin rotation.
type RetentionJob struct {
	Base
	id       string
	archiver *archive.Writer
	keys     *keyregistry.Registry
	logger   *slog.Logger
}

// NewRetentionJob builds the retention job.
func NewRetentionJob(id string, archiver *archive.Writer, keys *keyregistry.Registry, logger *slog.Logger) *RetentionJob {
	return &RetentionJob{id: id, archiver: archiver, keys: keys, logger: logger}
}

func (j *RetentionJob) ID() string { return j.id }

func (j *RetentionJob) Validate(ctx context.Context, params Params) error { return nil }

func (j *RetentionJob) Execute(ctx context.Context, params Params) (*Result, error) {
	purged, err := j.archiver.PurgeExpired(ctx, time.Now())
	if err != nil {
		return nil, NewError(j.id, CategoryTransient, "purging expired archive rows", err)
	}
	j.logger.Info("purged expired raw archive rows", "count", purged)

	if err := j.keys.Reactivate(ctx); err != nil {
		return nil, NewError(j.id, CategoryTransient, "reactivating keys", err)
	}
	if err := j.keys.ResetDaily(ctx); err != nil {
		return nil, NewError(j.id, CategoryTransient, "resetting daily quota", err)
	}

	return &Result{RowsProcessed: int(purged)}, nil
}
