package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aicc6/weatherflick-batch/internal/telemetry"
	"github.com/aicc6/weatherflick-batch/pkg/gateway"
	"github.com/aicc6/weatherflick-batch/pkg/quality"
	"github.com/aicc6/weatherflick-batch/pkg/transform"
	"github.com/aicc6/weatherflick-batch/pkg/upsert"
)

// GridCell is one KMA nx/ny forecast grid point to sync.
type GridCell struct {
	NX, NY int
}

// WeatherSyncJob fetches the village forecast for a set of grid cells,
// transforms and scores each chunk, and upserts the chunks that pass the
// gate.
type WeatherSyncJob struct {
	Base
	id           string
	client       *gateway.WeatherClient
	cells        []GridCell
	pipeline     *transform.Pipeline
	upsertEngine *upsert.Engine
	gate         *quality.Gate
	profile      upsert.Profile
	baseTime     string
	logger       *slog.Logger
}

// NewWeatherSyncJob builds a job syncing the given grid cells.
func NewWeatherSyncJob(id string, client *gateway.WeatherClient, cells []GridCell, pipeline *transform.Pipeline, upsertEngine *upsert.Engine, gate *quality.Gate, profile upsert.Profile, baseTime string, logger *slog.Logger) *WeatherSyncJob {
	return &WeatherSyncJob{
		id: id, client: client, cells: cells, pipeline: pipeline,
		upsertEngine: upsertEngine, gate: gate, profile: profile, baseTime: baseTime, logger: logger,
	}
}

func (j *WeatherSyncJob) ID() string { return j.id }

func (j *WeatherSyncJob) Validate(ctx context.Context, params Params) error {
	if len(j.cells) == 0 {
		return NewError(j.id, CategoryConfigError, "no grid cells configured", nil)
	}
	return nil
}

func (j *WeatherSyncJob) Execute(ctx context.Context, params Params) (*Result, error) {
	result := &Result{}
	now := time.Now()

	for _, cell := range j.cells {
		resp, err := j.client.VillageForecast(ctx, now, j.baseTime, cell.NX, cell.NY, 1, 1000)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("grid %d,%d: %v", cell.NX, cell.NY, err))
			continue
		}

		items := transform.FromGatewayResponse(resp)
		chunkErr := j.pipeline.WeatherChunks(items, func(chunk transform.Result) error {
			result.RowsProcessed += len(chunk.Rows)
			if len(chunk.Rows) == 0 {
				return nil
			}

			report := j.gate.Evaluate("weather_forecasts", chunk.Rows, now)
			telemetry.QualityScore.WithLabelValues("weather_forecasts").Set(report.OverallScore)
			if !report.Passed {
				result.Warnings = append(result.Warnings, fmt.Sprintf("quality gate failed for grid %d,%d: score %.2f", cell.NX, cell.NY, report.OverallScore))
				return nil
			}

			up, err := j.upsertEngine.Upsert(ctx, chunk.Rows, j.profile)
			if err != nil {
				return NewError(j.id, CategoryTransient, "bulk upsert failed", err)
			}
			result.RowsUpserted += up.RowsUpserted
			telemetry.UpsertRowsTotal.WithLabelValues(up.Table).Add(float64(up.RowsUpserted))
			return nil
		})
		if chunkErr != nil {
			return result, chunkErr
		}
	}

	result.TablesTouched = []string{"weather_forecasts"}
	return result, nil
}
