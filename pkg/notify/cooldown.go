package notify

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCooldownTracker enforces at-most-once delivery per incident key
// across every process sharing the cache, using a SET NX-with-TTL check.
type RedisCooldownTracker struct {
	client *redis.Client
}

// NewRedisCooldownTracker creates a tracker backed by client.
func NewRedisCooldownTracker(client *redis.Client) *RedisCooldownTracker {
	return &RedisCooldownTracker{client: client}
}

func (t *RedisCooldownTracker) ShouldDeliver(ctx context.Context, key string, cooldown time.Duration) bool {
	ok, err := t.client.SetNX(ctx, "weatherflick:alert:cooldown:"+key, 1, cooldown).Result()
	if err != nil {
		// Fail open: an unreachable cache must never silently swallow a
		// real incident.
		return true
	}
	return ok
}

// MemoryCooldownTracker is the in-process fallback used when Redis is not
// configured, so a single long-lived worker process still respects
// cooldowns even without the cross-process cache.
type MemoryCooldownTracker struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewMemoryCooldownTracker creates an in-memory tracker.
func NewMemoryCooldownTracker() *MemoryCooldownTracker {
	return &MemoryCooldownTracker{seen: make(map[string]time.Time)}
}

func (t *MemoryCooldownTracker) ShouldDeliver(ctx context.Context, key string, cooldown time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if last, ok := t.seen[key]; ok && now.Sub(last) < cooldown {
		return false
	}
	t.seen[key] = now
	return true
}
