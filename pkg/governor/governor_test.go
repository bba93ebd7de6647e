package governor

import (
	"context"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		MaxConcurrentGlobal:      2,
		MaxConcurrentPerProvider: 1,
		MinInterval:              0,
		AdaptiveDelayGrowth:      1.5,
		AdaptiveDelayDecay:       1.2,
		AdaptiveDelayCap:         30 * time.Second,
	}
}

func TestGovernor_AcquireRelease(t *testing.T) {
	g := New(testConfig())
	ctx := context.Background()

	slot, err := g.Acquire(ctx, "kto")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	slot.Release()
}

func TestGovernor_PerProviderSlotBlocksUntilReleased(t *testing.T) {
	g := New(testConfig())
	ctx := context.Background()

	slot, err := g.Acquire(ctx, "kto")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		s2, err := g.Acquire(ctx, "kto")
		if err != nil {
			return
		}
		close(acquired)
		s2.Release()
	}()

	select {
	case <-acquired:
		t.Fatalf("second acquire on the same provider should block while the first slot is held")
	case <-time.After(50 * time.Millisecond):
	}

	slot.Release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("second acquire never completed after release")
	}
}

func TestGovernor_AcquireRespectsContextCancellation(t *testing.T) {
	g := New(testConfig())
	ctx := context.Background()

	slot, err := g.Acquire(ctx, "kto")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer slot.Release()

	cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	if _, err := g.Acquire(cctx, "kto"); err == nil {
		t.Fatalf("expected context deadline error")
	}
}

func TestGovernor_BackoffGrowsAndRecoverDecays(t *testing.T) {
	g := New(testConfig())

	if d := g.AdaptiveDelay("kma"); d != 0 {
		t.Fatalf("initial adaptive delay = %v, want 0", d)
	}

	g.Backoff("kma")
	first := g.AdaptiveDelay("kma")
	if first <= 0 {
		t.Fatalf("expected backoff to set a positive delay")
	}

	g.Backoff("kma")
	second := g.AdaptiveDelay("kma")
	if second <= first {
		t.Fatalf("expected second backoff to grow the delay further: %v -> %v", first, second)
	}

	g.Recover("kma")
	afterRecover := g.AdaptiveDelay("kma")
	if afterRecover >= second {
		t.Fatalf("expected recover to shrink the delay: %v -> %v", second, afterRecover)
	}
}

func TestGovernor_BackoffCapsAtConfiguredMax(t *testing.T) {
	cfg := testConfig()
	cfg.AdaptiveDelayCap = 200 * time.Millisecond
	cfg.MinInterval = 100 * time.Millisecond
	g := New(cfg)

	for i := 0; i < 20; i++ {
		g.Backoff("kto")
	}
	if d := g.AdaptiveDelay("kto"); d > cfg.AdaptiveDelayCap {
		t.Fatalf("adaptive delay %v exceeds cap %v", d, cfg.AdaptiveDelayCap)
	}
}
