// Package upsert bulk-loads transformed rows into their destination tables
// using chunked INSERT ... ON CONFLICT DO UPDATE statements, with
// per-table tuning profiles and a memory guard that shrinks chunk size
// under pressure.
package upsert

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	retry "github.com/avast/retry-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/semaphore"

	"github.com/aicc6/weatherflick-batch/pkg/transform"
)

// conflictKeyByTable names the unique constraint each table upserts on.
// Every destination table carries a provider-assigned content key plus the
// bookkeeping columns raw_data_id/last_sync_at/data_quality_score that the
// quality gate and archive reference.
var conflictKeyByTable = map[string]string{
	"tourist_attractions": "content_id",
	"cultural_facilities": "content_id",
	"festivals_events":    "content_id",
	"travel_courses":      "content_id",
	"leisure_sports":      "content_id",
	"accommodations":      "content_id",
	"shopping":            "content_id",
	"restaurants":         "content_id",
	"weather_current":     "nx, ny, observed_at",
	"weather_forecasts":   "nx, ny, forecast_date, forecast_time",
}

// Report summarizes one table's upsert run.
type Report struct {
	Table            string
	RowsAttempted    int
	RowsUpserted     int
	ChunksFailed     int
	Aborted          bool
	Errors           []error
	ExecutionTime    time.Duration
	RecordsPerSecond float64
}

// maxConsecutiveChunkFailures aborts an upsert run once this many chunks
// in a row have exhausted their retries, rather than grinding through an
// entire run against a database that is clearly unreachable. Only enforced
// on the sequential path: a parallel run has no single "consecutive"
// ordering to count against.
const maxConsecutiveChunkFailures = 5

// maxReportedErrors caps how many chunk errors a Report carries, so a run
// against a badly broken table doesn't balloon a job's log output with one
// error per chunk.
const maxReportedErrors = 10

// Engine executes bulk upserts against Postgres using a tuning profile.
type Engine struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewEngine creates an Engine backed by pool.
func NewEngine(pool *pgxpool.Pool, logger *slog.Logger) *Engine {
	return &Engine{pool: pool, logger: logger}
}

// Upsert writes rows to their destination table (every row must share the
// same Table) in chunks sized by profile, shrinking the chunk size when
// the process is under memory pressure, and retrying a failed chunk before
// counting it toward the consecutive-failure abort threshold. Chunks run
// sequentially when profile.ParallelDegree <= 1 and concurrently, bounded
// by that degree, otherwise.
func (e *Engine) Upsert(ctx context.Context, rows []*transform.Row, profile Profile) (*Report, error) {
	if len(rows) == 0 {
		return &Report{}, nil
	}
	started := time.Now()
	table := rows[0].Table
	report := &Report{Table: table, RowsAttempted: len(rows)}

	chunkSize := e.guardedChunkSize(profile)
	chunks := make([][]*transform.Row, 0, len(rows)/chunkSize+1)
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, rows[start:end])
	}

	var runErr error
	if profile.ParallelDegree > 1 {
		runErr = e.upsertParallel(ctx, table, chunks, profile, report)
	} else {
		runErr = e.upsertSequential(ctx, table, chunks, profile, report)
	}

	report.ExecutionTime = time.Since(started)
	if report.ExecutionTime > 0 {
		report.RecordsPerSecond = float64(report.RowsUpserted) / report.ExecutionTime.Seconds()
	}
	if len(report.Errors) > maxReportedErrors {
		report.Errors = report.Errors[:maxReportedErrors]
	}
	return report, runErr
}

// upsertSequential runs chunks one at a time, aborting the whole run once
// maxConsecutiveChunkFailures chunks in a row have exhausted their retries.
func (e *Engine) upsertSequential(ctx context.Context, table string, chunks [][]*transform.Row, profile Profile, report *Report) error {
	consecutiveFailures := 0
	for _, chunk := range chunks {
		if err := e.retryChunk(ctx, table, chunk, profile); err != nil {
			report.ChunksFailed++
			report.Errors = append(report.Errors, err)
			consecutiveFailures++
			e.logger.Error("upsert chunk failed after retries", "table", table, "error", err)

			if consecutiveFailures >= maxConsecutiveChunkFailures {
				report.Aborted = true
				return fmt.Errorf("upsert aborted for %s after %d consecutive chunk failures: %w", table, consecutiveFailures, err)
			}
			continue
		}
		consecutiveFailures = 0
		report.RowsUpserted += len(chunk)
	}
	return nil
}

// upsertParallel runs up to profile.ParallelDegree chunks concurrently.
// There is no "consecutive" failure count to abort on without an ordering,
// so a parallel run only aborts when every chunk has failed.
func (e *Engine) upsertParallel(ctx context.Context, table string, chunks [][]*transform.Row, profile Profile, report *Report) error {
	sem := semaphore.NewWeighted(int64(profile.ParallelDegree))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, chunk := range chunks {
		chunk := chunk
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			report.Errors = append(report.Errors, err)
			mu.Unlock()
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			err := e.retryChunk(ctx, table, chunk, profile)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.ChunksFailed++
				report.Errors = append(report.Errors, err)
				e.logger.Error("upsert chunk failed after retries", "table", table, "error", err)
				return
			}
			report.RowsUpserted += len(chunk)
		}()
	}
	wg.Wait()

	if report.RowsUpserted == 0 && report.ChunksFailed == len(chunks) && len(chunks) > 0 {
		report.Aborted = true
		return fmt.Errorf("upsert aborted for %s: all %d chunks failed", table, len(chunks))
	}
	return nil
}

func (e *Engine) retryChunk(ctx context.Context, table string, chunk []*transform.Row, profile Profile) error {
	return retry.Do(
		func() error { return e.upsertChunk(ctx, table, chunk, profile.UpsertEnabled) },
		retry.Attempts(profile.MaxRetries+1),
		retry.Delay(profile.RetryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			e.logger.Warn("retrying upsert chunk", "table", table, "attempt", n, "error", err)
		}),
	)
}

// guardedChunkSize shrinks the configured chunk size when heap usage is
// already past the profile's memory guard threshold, trading throughput
// for a bounded working set.
func (e *Engine) guardedChunkSize(profile Profile) int {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	usedMB := int(mem.HeapAlloc / (1024 * 1024))

	if usedMB >= profile.MemoryGuardMB {
		shrunk := profile.ChunkSize / 4
		if shrunk < 10 {
			shrunk = 10
		}
		e.logger.Warn("memory guard engaged, shrinking upsert chunk size",
			"heap_mb", usedMB, "guard_mb", profile.MemoryGuardMB,
			"original_chunk", profile.ChunkSize, "shrunk_chunk", shrunk)
		return shrunk
	}
	return profile.ChunkSize
}

// upsertChunk builds and executes one INSERT statement for a chunk of rows
// that all share the same field set. When upsertEnabled is true the
// statement carries an ON CONFLICT DO UPDATE clause; when false it is a
// plain INSERT, for append-only loads or loads already deduplicated
// upstream where the conflict check is pure overhead.
func (e *Engine) upsertChunk(ctx context.Context, table string, chunk []*transform.Row, upsertEnabled bool) error {
	if len(chunk) == 0 {
		return nil
	}

	columns := unionColumns(chunk)

	var query string
	var args []any
	if upsertEnabled {
		conflictKey, ok := conflictKeyByTable[table]
		if !ok {
			return fmt.Errorf("no conflict key configured for table %s", table)
		}
		query, args = buildUpsertSQL(table, columns, conflictKey, chunk)
	} else {
		query, args = buildInsertSQL(table, columns, chunk)
	}

	execCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := e.pool.Exec(execCtx, query, args...); err != nil {
		return fmt.Errorf("executing upsert for %s (%d rows): %w", table, len(chunk), err)
	}
	return nil
}

// unionColumns returns the sorted union of field names across a chunk,
// plus the three bookkeeping columns every destination table carries.
func unionColumns(chunk []*transform.Row) []string {
	set := map[string]struct{}{
		"raw_data_id":        {},
		"last_sync_at":       {},
		"data_quality_score": {},
	}
	for _, row := range chunk {
		for k := range row.Fields {
			set[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(set))
	for k := range set {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// buildUpsertSQL renders a multi-row INSERT ... ON CONFLICT DO UPDATE
// statement over columns, with one VALUES tuple per row in chunk.
func buildUpsertSQL(table string, columns []string, conflictKey string, chunk []*transform.Row) (string, []any) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))

	args := make([]any, 0, len(columns)*len(chunk))
	argN := 1
	for i, row := range chunk {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j, col := range columns {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", argN)
			argN++
			args = append(args, valueFor(col, row))
		}
		sb.WriteString(")")
	}

	sb.WriteString(fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET ", conflictKey))
	first := true
	conflictCols := splitConflictKey(conflictKey)
	for _, col := range columns {
		if containsString(conflictCols, col) {
			continue
		}
		if !first {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s = EXCLUDED.%s", col, col)
		first = false
	}

	return sb.String(), args
}

// buildInsertSQL renders a plain multi-row INSERT with no conflict
// handling, one VALUES tuple per row in chunk.
func buildInsertSQL(table string, columns []string, chunk []*transform.Row) (string, []any) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))

	args := make([]any, 0, len(columns)*len(chunk))
	argN := 1
	for i, row := range chunk {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j, col := range columns {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", argN)
			argN++
			args = append(args, valueFor(col, row))
		}
		sb.WriteString(")")
	}

	return sb.String(), args
}

func valueFor(col string, row *transform.Row) any {
	switch col {
	case "raw_data_id":
		return row.RawDataID
	case "last_sync_at":
		return time.Now()
	case "data_quality_score":
		return row.QualityScore
	default:
		return row.Fields[col]
	}
}

func splitConflictKey(key string) []string {
	parts := strings.Split(key, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func containsString(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
