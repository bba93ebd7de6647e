package notify

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCooldownTracker_SuppressesWithinWindow(t *testing.T) {
	tr := NewMemoryCooldownTracker()
	ctx := context.Background()

	if !tr.ShouldDeliver(ctx, "incident-1", time.Minute) {
		t.Fatalf("first delivery should be allowed")
	}
	if tr.ShouldDeliver(ctx, "incident-1", time.Minute) {
		t.Fatalf("second delivery within cooldown should be suppressed")
	}
}

func TestMemoryCooldownTracker_AllowsAfterWindowElapses(t *testing.T) {
	tr := NewMemoryCooldownTracker()
	ctx := context.Background()

	tr.ShouldDeliver(ctx, "incident-1", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	if !tr.ShouldDeliver(ctx, "incident-1", time.Millisecond) {
		t.Fatalf("expected delivery to be allowed once the cooldown window elapses")
	}
}

func TestMemoryCooldownTracker_DistinctKeysAreIndependent(t *testing.T) {
	tr := NewMemoryCooldownTracker()
	ctx := context.Background()

	tr.ShouldDeliver(ctx, "incident-1", time.Minute)
	if !tr.ShouldDeliver(ctx, "incident-2", time.Minute) {
		t.Fatalf("a distinct incident key should not be suppressed by an unrelated cooldown")
	}
}
