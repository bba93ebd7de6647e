package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aicc6/weatherflick-batch/pkg/job"
)

type fakeEgress struct {
	sent []Alert
	err  error
}

func (f *fakeEgress) Send(ctx context.Context, alert Alert) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, alert)
	return nil
}

type fakeTracker struct{ allow bool }

func (f *fakeTracker) ShouldDeliver(ctx context.Context, key string, cooldown time.Duration) bool {
	return f.allow
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestDispatcher_Notify_SkipsWhenCooldownActive(t *testing.T) {
	egress := &fakeEgress{}
	n := New(egress, &fakeTracker{allow: false}, time.Minute, nil, discardLogger())

	err := n.Notify(context.Background(), Alert{Title: "t", Source: "s", Severity: job.SeverityHigh})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(egress.sent) != 0 {
		t.Fatalf("expected no delivery while cooldown tracker denies")
	}
}

func TestDispatcher_Notify_DeliversWhenAllowed(t *testing.T) {
	egress := &fakeEgress{}
	n := New(egress, &fakeTracker{allow: true}, time.Minute, nil, discardLogger())

	err := n.Notify(context.Background(), Alert{Title: "t", Source: "s", Severity: job.SeverityHigh})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(egress.sent) != 1 {
		t.Fatalf("expected one delivery, got %d", len(egress.sent))
	}
}

func TestDispatcher_Notify_RespectsRoutingThreshold(t *testing.T) {
	egress := &fakeEgress{}
	routing := &RoutingConfig{MinSeverity: job.SeverityHigh}
	n := New(egress, &fakeTracker{allow: true}, time.Minute, routing, discardLogger())

	err := n.Notify(context.Background(), Alert{Title: "t", Source: "s", Severity: job.SeverityLow})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(egress.sent) != 0 {
		t.Fatalf("expected low severity alert to be suppressed by routing threshold")
	}
}

func TestDispatcher_NotifyJobFailure_UsesJobErrorSeverity(t *testing.T) {
	egress := &fakeEgress{}
	n := New(egress, &fakeTracker{allow: true}, time.Minute, nil, discardLogger())

	jerr := job.NewError("tourism-sync", job.CategoryAuthError, "bad key", nil)
	n.NotifyJobFailure(context.Background(), "tourism-sync", jerr)

	if len(egress.sent) != 1 {
		t.Fatalf("expected one delivery, got %d", len(egress.sent))
	}
	if egress.sent[0].Severity != job.SeverityHigh {
		t.Fatalf("severity = %q, want high", egress.sent[0].Severity)
	}
}

func TestDispatcher_NotifyJobFailure_DefaultsSeverityForPlainError(t *testing.T) {
	egress := &fakeEgress{}
	n := New(egress, &fakeTracker{allow: true}, time.Minute, nil, discardLogger())

	n.NotifyJobFailure(context.Background(), "weather-sync", errors.New("boom"))

	if len(egress.sent) != 1 {
		t.Fatalf("expected one delivery, got %d", len(egress.sent))
	}
	if egress.sent[0].Severity != job.SeverityMedium {
		t.Fatalf("severity = %q, want medium", egress.sent[0].Severity)
	}
}
