package keyregistry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const keyColumns = `id, provider, secret, daily_quota, used_today, status, cooldown_until, last_used_at, quota_reset_at, consecutive_errors, total_calls, total_successes`

// Store provides the durable backing for the key registry's Postgres-held
// quota ledger. Every read and write goes straight to Postgres; the
// optional Redis client given to NewRegistry only carries invalidation
// messages between processes.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanKeyRow(row pgx.Row) (Key, error) {
	var k Key
	var cooldown, lastUsed pgtype.Timestamptz
	var status string
	err := row.Scan(
		&k.ID, &k.Provider, &k.Secret, &k.DailyQuota, &k.UsedToday,
		&status, &cooldown, &lastUsed, &k.QuotaResetAt,
		&k.ConsecutiveErrors, &k.TotalCalls, &k.TotalSuccesses,
	)
	k.Status = KeyStatus(status)
	if cooldown.Valid {
		t := cooldown.Time
		k.CooldownUntil = &t
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		k.LastUsedAt = &t
	}
	return k, err
}

// ListByProvider returns every registered key for a provider, ordered by
// remaining quota descending so the registry can prefer the freshest key.
func (s *Store) ListByProvider(ctx context.Context, provider Provider) ([]Key, error) {
	query := `SELECT ` + keyColumns + ` FROM batch_api_keys
		WHERE provider = $1
		ORDER BY (daily_quota - used_today) DESC`
	rows, err := s.pool.Query(ctx, query, provider)
	if err != nil {
		return nil, fmt.Errorf("listing keys for provider %s: %w", provider, err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		k, err := scanKeyRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning key row: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Register inserts a new key, or updates the secret if one with the same
// provider and secret already exists (idempotent on process restart).
func (s *Store) Register(ctx context.Context, provider Provider, secret string, dailyQuota int) (Key, error) {
	query := `INSERT INTO batch_api_keys (id, provider, secret, daily_quota, used_today, status, quota_reset_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6)
		ON CONFLICT (provider, secret) DO UPDATE SET daily_quota = EXCLUDED.daily_quota
		RETURNING ` + keyColumns

	row := s.pool.QueryRow(ctx, query,
		uuid.New(), provider, secret, dailyQuota, KeyStatusActive, nextMidnight(time.Now()),
	)
	return scanKeyRow(row)
}

// RecordUsage persists a single call's outcome against a key: incrementing
// used_today on success, transitioning status on exhaustion or cooldown,
// and carrying forward the error/call counters the registry maintains.
func (s *Store) RecordUsage(ctx context.Context, id uuid.UUID, status KeyStatus, usedDelta int, cooldownUntil *time.Time, consecutiveErrors, totalCalls, totalSuccesses int) error {
	query := `UPDATE batch_api_keys
		SET used_today = used_today + $2, status = $3, cooldown_until = $4, last_used_at = now(),
			consecutive_errors = $5, total_calls = $6, total_successes = $7
		WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id, usedDelta, status, cooldownUntil, consecutiveErrors, totalCalls, totalSuccesses)
	if err != nil {
		return fmt.Errorf("recording key usage: %w", err)
	}
	return nil
}

// ResetDaily zeroes used_today and reactivates keys whose quota_reset_at
// has passed. Intended to run once per local midnight per the configured
// timezone.
func (s *Store) ResetDaily(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE batch_api_keys
		SET used_today = 0, status = $2, quota_reset_at = $3
		WHERE quota_reset_at <= $1 AND status IN ($2, $4, $5)`
	tag, err := s.pool.Exec(ctx, query, now, KeyStatusActive, nextMidnight(now), KeyStatusExhausted, KeyStatusCoolingDown)
	if err != nil {
		return 0, fmt.Errorf("resetting daily quota: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ReactivationCandidates returns every cooling-down or disabled key whose
// cooldown window has elapsed, for the registry's probe pass. A key with
// no cooldown_until (a permanently disabled key pending manual review)
// never appears here.
func (s *Store) ReactivationCandidates(ctx context.Context, now time.Time) ([]Key, error) {
	query := `SELECT ` + keyColumns + ` FROM batch_api_keys
		WHERE status IN ($2, $3) AND cooldown_until IS NOT NULL AND cooldown_until <= $1`
	rows, err := s.pool.Query(ctx, query, now, KeyStatusCoolingDown, KeyStatusDisabled)
	if err != nil {
		return nil, fmt.Errorf("listing reactivation candidates: %w", err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		k, err := scanKeyRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning key row: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// MarkActive clears a key's cooldown and consecutive-error count after a
// successful reactivation probe.
func (s *Store) MarkActive(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE batch_api_keys
		SET status = $2, cooldown_until = NULL, consecutive_errors = 0
		WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id, KeyStatusActive)
	if err != nil {
		return fmt.Errorf("marking key active: %w", err)
	}
	return nil
}

func nextMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
}
