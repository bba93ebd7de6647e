// Package governor paces outbound provider calls: a global semaphore and a
// per-provider semaphore bound concurrency, a minimum interval spaces calls
// within a provider, and an adaptive delay backs off further when a
// provider starts returning rate-limit signals.
package governor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Config holds the static limits a Governor enforces.
type Config struct {
	MaxConcurrentGlobal      int64
	MaxConcurrentPerProvider int64
	MinInterval              time.Duration
	AdaptiveDelayGrowth      float64
	AdaptiveDelayDecay       float64
	AdaptiveDelayCap         time.Duration
}

// Governor rations access to outbound HTTP calls across providers.
type Governor struct {
	cfg    Config
	global *semaphore.Weighted

	mu        sync.Mutex
	providers map[string]*providerState
}

type providerState struct {
	sem          *semaphore.Weighted
	lastCallAt   time.Time
	adaptiveDelay time.Duration
}

// New creates a Governor. Per-provider state is created lazily on first use.
func New(cfg Config) *Governor {
	return &Governor{
		cfg:       cfg,
		global:    semaphore.NewWeighted(cfg.MaxConcurrentGlobal),
		providers: make(map[string]*providerState),
	}
}

func (g *Governor) stateFor(provider string) *providerState {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.providers[provider]
	if !ok {
		st = &providerState{sem: semaphore.NewWeighted(g.cfg.MaxConcurrentPerProvider)}
		g.providers[provider] = st
	}
	return st
}

// Slot represents one acquired concurrency slot. Callers must call Release
// exactly once after the outbound call completes.
type Slot struct {
	g        *Governor
	provider string
}

// Acquire blocks until a global slot and a per-provider slot are both
// available, and the per-provider minimum interval has elapsed (including
// any adaptive backoff currently in effect). Returns ctx.Err() if ctx is
// cancelled while waiting.
func (g *Governor) Acquire(ctx context.Context, provider string) (*Slot, error) {
	if err := g.global.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquiring global concurrency slot: %w", err)
	}

	st := g.stateFor(provider)
	if err := st.sem.Acquire(ctx, 1); err != nil {
		g.global.Release(1)
		return nil, fmt.Errorf("acquiring provider concurrency slot for %s: %w", provider, err)
	}

	if err := g.waitForPacing(ctx, st); err != nil {
		st.sem.Release(1)
		g.global.Release(1)
		return nil, err
	}

	return &Slot{g: g, provider: provider}, nil
}

func (g *Governor) waitForPacing(ctx context.Context, st *providerState) error {
	g.mu.Lock()
	wait := time.Duration(0)
	if !st.lastCallAt.IsZero() {
		floor := g.cfg.MinInterval + st.adaptiveDelay
		elapsed := time.Since(st.lastCallAt)
		if elapsed < floor {
			wait = floor - elapsed
		}
	}
	g.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Release frees the slot's concurrency permits and stamps the provider's
// last-call time for pacing purposes. Must be called exactly once per Slot.
func (s *Slot) Release() {
	st := s.g.stateFor(s.provider)
	s.g.mu.Lock()
	st.lastCallAt = time.Now()
	s.g.mu.Unlock()

	st.sem.Release(1)
	s.g.global.Release(1)
}

// Backoff grows the provider's adaptive delay multiplicatively, capped at
// AdaptiveDelayCap. Call this when a provider signals rate limiting.
func (g *Governor) Backoff(provider string) {
	st := g.stateFor(provider)
	g.mu.Lock()
	defer g.mu.Unlock()
	if st.adaptiveDelay <= 0 {
		st.adaptiveDelay = g.cfg.MinInterval
		if st.adaptiveDelay <= 0 {
			st.adaptiveDelay = 100 * time.Millisecond
		}
	}
	next := time.Duration(float64(st.adaptiveDelay) * g.cfg.AdaptiveDelayGrowth)
	if next > g.cfg.AdaptiveDelayCap {
		next = g.cfg.AdaptiveDelayCap
	}
	st.adaptiveDelay = next
}

// Recover decays the provider's adaptive delay after a successful call,
// eventually returning pacing to the configured minimum interval.
func (g *Governor) Recover(provider string) {
	st := g.stateFor(provider)
	g.mu.Lock()
	defer g.mu.Unlock()
	if st.adaptiveDelay <= 0 {
		return
	}
	next := time.Duration(float64(st.adaptiveDelay) / g.cfg.AdaptiveDelayDecay)
	if next < time.Millisecond {
		next = 0
	}
	st.adaptiveDelay = next
}

// AdaptiveDelay returns the current adaptive delay for a provider, for
// observability purposes.
func (g *Governor) AdaptiveDelay(provider string) time.Duration {
	st := g.stateFor(provider)
	g.mu.Lock()
	defer g.mu.Unlock()
	return st.adaptiveDelay
}
