// Package archive durably records every outbound provider response before
// it is transformed, so a bad transform run can always be replayed from the
// original payload. Retention is provider-specific: tourism responses
// outlive weather responses because tourism listings change far less often.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Record is a single raw API response to be archived.
type Record struct {
	Provider   string
	StatusCode int
	Body       []byte
	CalledAt   time.Time
}

// retentionByProvider gives each provider's raw-archive TTL. Tourism
// listings are retained roughly a week so reprocessing can recover from a
// bad transform run; weather observations expire in hours because a new
// forecast supersedes the old one long before that.
var retentionByProvider = map[string]time.Duration{
	"kto": 7 * 24 * time.Hour,
	"kma": 6 * time.Hour,
}

// Writer archives raw provider responses synchronously: every call to
// Write blocks until the row is durably committed. The gateway depends on
// this to guarantee a response is archived before it is handed to the
// transform pipeline, so unlike the audit log this is not a buffered,
// best-effort background writer.
type Writer struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewWriter creates an archive Writer backed by pool.
func NewWriter(pool *pgxpool.Pool, logger *slog.Logger) *Writer {
	return &Writer{pool: pool, logger: logger}
}

// Write persists a raw response and returns its archive ID. Archive
// failures are logged rather than propagated: losing the raw copy of a
// response that the gateway already has in hand must never abort the job,
// it only narrows what a later reprocessing pass can recover.
func (w *Writer) Write(ctx context.Context, rec Record) uuid.UUID {
	id := uuid.New()
	ttl := retentionByProvider[rec.Provider]
	expiresAt := rec.CalledAt.Add(ttl)

	query := `INSERT INTO api_raw_data (id, provider, status_code, body, called_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := w.pool.Exec(writeCtx, query, id, rec.Provider, rec.StatusCode, rec.Body, rec.CalledAt, expiresAt); err != nil {
		w.logger.Error("archiving raw response", "provider", rec.Provider, "error", err)
	}
	return id
}

// PurgeExpired deletes archive rows whose expiry has passed. Intended to
// run as a periodic retention job.
func (w *Writer) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM api_raw_data WHERE expires_at <= $1`
	tag, err := w.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("purging expired archive rows: %w", err)
	}
	return tag.RowsAffected(), nil
}
