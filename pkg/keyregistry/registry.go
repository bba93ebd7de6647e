package keyregistry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoKeyAvailable is returned by Acquire when every registered key for a
// provider is exhausted, cooling down, or disabled.
var ErrNoKeyAvailable = errors.New("keyregistry: no usable key for provider")

// Registry is the in-process, per-provider mutex-guarded view over the
// durable key store. Registered keys are cached in memory and refreshed
// lazily; writes go through to Postgres synchronously so a process crash
// never loses quota usage.
type Registry struct {
	store  *Store
	cache  *redis.Client
	prober Prober
	logger *slog.Logger

	mu   sync.Mutex
	keys map[Provider][]*Key
}

// NewRegistry creates a Registry. cache may be nil, in which case the
// cross-process invalidation pub/sub is skipped and each process relies
// solely on Postgres as the source of truth. prober may be nil, in which
// case disabled keys never automatically reactivate and require a manual
// status change.
func NewRegistry(store *Store, cache *redis.Client, prober Prober, logger *slog.Logger) *Registry {
	return &Registry{
		store:  store,
		cache:  cache,
		prober: prober,
		logger: logger,
		keys:   make(map[Provider][]*Key),
	}
}

// Load populates the in-memory cache for a provider from the durable store.
// Call this at startup and whenever a reactivation pass changes state.
func (r *Registry) Load(ctx context.Context, provider Provider) error {
	keys, err := r.store.ListByProvider(ctx, provider)
	if err != nil {
		return fmt.Errorf("loading keys for %s: %w", provider, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	cur := make([]*Key, len(keys))
	for i := range keys {
		k := keys[i]
		cur[i] = &k
	}
	r.keys[provider] = cur
	return nil
}

// Acquire selects the key with the most remaining quota for a provider and
// provisionally reserves one unit of its daily quota before returning,
// still holding the registry lock. This closes the race where two
// concurrent callers both read a key with remaining=1 as usable: the
// reservation is visible to the next Acquire the instant this one
// releases the lock. Callers must call Record with the outcome once the
// call completes; Record releases the reservation again on any outcome
// other than success.
func (r *Registry) Acquire(provider Provider) (*Lease, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var best *Key
	for _, k := range r.keys[provider] {
		if !k.Usable(now) {
			continue
		}
		if best == nil || k.Remaining() > best.Remaining() {
			best = k
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoKeyAvailable, provider)
	}

	best.UsedToday++
	if best.Remaining() <= 0 {
		best.Status = KeyStatusExhausted
	}
	return &Lease{Key: best, AcquiredAt: now}, nil
}

// Record applies the outcome of a call made with a leased key: it updates
// the in-memory view immediately and persists the change to Postgres.
// This is the synchronous, crash-safe path described for quota tracking.
func (r *Registry) Record(ctx context.Context, lease *Lease, outcome Outcome) error {
	k := lease.Key

	r.mu.Lock()
	status := KeyStatusActive
	var cooldownUntil *time.Time
	usedDelta := -1 // release the unit Acquire provisionally reserved

	k.TotalCalls++

	switch {
	case outcome.Success:
		usedDelta = 0
		k.ConsecutiveErrors = 0
		k.TotalSuccesses++
		now := time.Now()
		k.LastUsedAt = &now
	case outcome.QuotaExhausted:
		status = KeyStatusExhausted
	case outcome.RateLimited:
		status = KeyStatusCoolingDown
		until := time.Now().Add(outcome.RetryAfter)
		if outcome.RetryAfter <= 0 {
			until = time.Now().Add(time.Hour)
		}
		cooldownUntil = &until
	case outcome.AuthFailed:
		// provider rejected the credential outright: disable with no
		// cooldown. The reactivation pass only probes keys that carry a
		// cooldown, so this key stays out of rotation until its status is
		// changed manually.
		status = KeyStatusDisabled
	case outcome.TransientError:
		k.ConsecutiveErrors++
		if k.ConsecutiveErrors >= 5 {
			status = KeyStatusDisabled
			until := time.Now().Add(30 * time.Minute)
			cooldownUntil = &until
		}
	}

	k.UsedToday += usedDelta
	if k.UsedToday < 0 {
		k.UsedToday = 0
	}
	k.Status = status
	k.CooldownUntil = cooldownUntil
	if k.Remaining() <= 0 && status == KeyStatusActive {
		k.Status = KeyStatusExhausted
		status = k.Status
	}
	r.mu.Unlock()

	// The store never saw Acquire's in-memory reservation, so the durable
	// counter is charged one unit for a successful call and nothing otherwise.
	persistedDelta := 0
	if outcome.Success {
		persistedDelta = 1
	}
	if err := r.store.RecordUsage(ctx, k.ID, status, persistedDelta, cooldownUntil, k.ConsecutiveErrors, k.TotalCalls, k.TotalSuccesses); err != nil {
		return fmt.Errorf("persisting key usage for %s: %w", k.ID, err)
	}

	if status != KeyStatusActive {
		r.logger.Warn("key transitioned out of active rotation",
			"provider", k.Provider, "key_id", k.ID, "status", status)
		r.publishInvalidate(ctx, k.Provider)
	}
	return nil
}

// Reactivate probes every cooling-down or disabled key whose cooldown has
// elapsed and, for each that answers successfully, clears its status in
// the durable store. Keys with no prober configured, or whose probe
// fails, are left exactly as they are. This backs the periodic
// reactivation pass run by the retention job.
func (r *Registry) Reactivate(ctx context.Context) error {
	if r.prober == nil {
		return nil
	}

	candidates, err := r.store.ReactivationCandidates(ctx, time.Now())
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return nil
	}

	reactivated := 0
	for _, k := range candidates {
		if err := r.prober.Probe(ctx, k.Provider, k.Secret); err != nil {
			r.logger.Debug("probe failed, key remains out of rotation", "provider", k.Provider, "key_id", k.ID, "error", err)
			continue
		}
		if err := r.store.MarkActive(ctx, k.ID); err != nil {
			return fmt.Errorf("marking key %s active after probe: %w", k.ID, err)
		}
		reactivated++
	}
	if reactivated == 0 {
		return nil
	}
	r.logger.Info("reactivated keys via probe", "count", reactivated)

	r.mu.Lock()
	providers := make([]Provider, 0, len(r.keys))
	for p := range r.keys {
		providers = append(providers, p)
	}
	r.mu.Unlock()

	for _, p := range providers {
		if err := r.Load(ctx, p); err != nil {
			return err
		}
		r.publishInvalidate(ctx, p)
	}
	return nil
}

// ResetDaily zeroes quota usage for keys whose reset boundary has passed
// and reloads the in-memory view so the reset keys rejoin rotation.
func (r *Registry) ResetDaily(ctx context.Context) error {
	n, err := r.store.ResetDaily(ctx, time.Now())
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	r.logger.Info("reset daily quota", "keys_reset", n)

	r.mu.Lock()
	providers := make([]Provider, 0, len(r.keys))
	for p := range r.keys {
		providers = append(providers, p)
	}
	r.mu.Unlock()

	for _, p := range providers {
		if err := r.Load(ctx, p); err != nil {
			return err
		}
		r.publishInvalidate(ctx, p)
	}
	return nil
}

// Snapshot returns a point-in-time copy of a provider's key states, useful
// for the operator's "status" subcommand.
func (r *Registry) Snapshot(provider Provider) []Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Key, 0, len(r.keys[provider]))
	for _, k := range r.keys[provider] {
		out = append(out, *k)
	}
	return out
}

// publishInvalidate notifies other processes sharing the Redis cache that a
// provider's key state changed, so they reload before their next Acquire.
func (r *Registry) publishInvalidate(ctx context.Context, provider Provider) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Publish(ctx, "weatherflick:keyregistry:invalidate", string(provider)).Err(); err != nil {
		r.logger.Warn("publishing key registry invalidation", "error", err)
	}
}

// Subscribe listens for invalidation events from other processes and
// reloads the affected provider. Blocks until ctx is cancelled.
func (r *Registry) Subscribe(ctx context.Context) {
	if r.cache == nil {
		return
	}
	pubsub := r.cache.Subscribe(ctx, "weatherflick:keyregistry:invalidate")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			provider := Provider(msg.Payload)
			if err := r.Load(ctx, provider); err != nil {
				r.logger.Error("reloading keys after invalidation", "provider", provider, "error", err)
			}
		}
	}
}
