package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aicc6/weatherflick-batch/internal/telemetry"
	"github.com/aicc6/weatherflick-batch/pkg/gateway"
	"github.com/aicc6/weatherflick-batch/pkg/quality"
	"github.com/aicc6/weatherflick-batch/pkg/transform"
	"github.com/aicc6/weatherflick-batch/pkg/upsert"
)

// TourismSyncJob pages through a single KTO content type's areaBasedList2
// listing, transforms each page, scores each chunk against the quality
// gate, and upserts the chunks that pass.
type TourismSyncJob struct {
	Base
	id            string
	contentType   gateway.ContentType
	client        *gateway.TourismClient
	pipeline      *transform.Pipeline
	upsertEngine  *upsert.Engine
	gate          *quality.Gate
	profile       upsert.Profile
	pageSize      int
	logger        *slog.Logger
}

// NewTourismSyncJob builds a job for a single content type.
func NewTourismSyncJob(id string, contentType gateway.ContentType, client *gateway.TourismClient, pipeline *transform.Pipeline, upsertEngine *upsert.Engine, gate *quality.Gate, profile upsert.Profile, pageSize int, logger *slog.Logger) *TourismSyncJob {
	return &TourismSyncJob{
		id: id, contentType: contentType, client: client, pipeline: pipeline,
		upsertEngine: upsertEngine, gate: gate, profile: profile, pageSize: pageSize,
		logger: logger,
	}
}

func (j *TourismSyncJob) ID() string { return j.id }

func (j *TourismSyncJob) Validate(ctx context.Context, params Params) error {
	if j.pageSize <= 0 {
		return NewError(j.id, CategoryConfigError, "page size must be positive", nil)
	}
	return nil
}

func (j *TourismSyncJob) Execute(ctx context.Context, params Params) (*Result, error) {
	result := &Result{}
	tableSeen := map[string]bool{}

	for page := 1; ; page++ {
		resp, err := j.client.AreaBasedList(ctx, j.contentType, page, j.pageSize)
		if err != nil {
			return result, classifyGatewayErr(j.id, err)
		}

		items := transform.FromGatewayResponse(resp)
		if len(items) == 0 {
			break
		}

		chunkErr := j.pipeline.TourismChunks(items, func(chunk transform.Result) error {
			result.RowsProcessed += len(chunk.Rows)
			if len(chunk.Rejected) > 0 {
				result.Warnings = append(result.Warnings, fmt.Sprintf("rejected %d items on page %d", len(chunk.Rejected), page))
			}
			if len(chunk.Rows) == 0 {
				return nil
			}

			report := j.gate.Evaluate(chunk.Rows[0].Table, chunk.Rows, time.Now())
			telemetry.QualityScore.WithLabelValues(chunk.Rows[0].Table).Set(report.OverallScore)
			if !report.Passed {
				result.Warnings = append(result.Warnings, fmt.Sprintf("quality gate failed for %s: score %.2f", report.Table, report.OverallScore))
				return nil
			}

			up, err := j.upsertEngine.Upsert(ctx, chunk.Rows, j.profile)
			if err != nil {
				return NewError(j.id, CategoryTransient, "bulk upsert failed", err)
			}
			result.RowsUpserted += up.RowsUpserted
			tableSeen[up.Table] = true
			telemetry.UpsertRowsTotal.WithLabelValues(up.Table).Add(float64(up.RowsUpserted))
			return nil
		})
		if chunkErr != nil {
			return result, chunkErr
		}

		if len(items) < j.pageSize {
			break
		}
	}

	for t := range tableSeen {
		result.TablesTouched = append(result.TablesTouched, t)
	}
	return result, nil
}

func classifyGatewayErr(jobID string, err error) error {
	var gerr *gateway.Error
	if errors.As(err, &gerr) {
		switch gerr.Outcome {
		case gateway.OutcomeQuotaExhausted:
			return NewError(jobID, CategoryQuotaExhausted, gerr.Message, err)
		case gateway.OutcomeRateLimited:
			return NewError(jobID, CategoryRateLimited, gerr.Message, err)
		case gateway.OutcomeAuthError:
			return NewError(jobID, CategoryAuthError, gerr.Message, err)
		case gateway.OutcomeTimeout:
			return NewError(jobID, CategoryTimeout, gerr.Message, err)
		case gateway.OutcomeValidation:
			return NewError(jobID, CategoryValidation, gerr.Message, err)
		default:
			return NewError(jobID, CategoryTransient, gerr.Message, err)
		}
	}
	return NewError(jobID, CategoryTransient, "calling provider", err)
}
