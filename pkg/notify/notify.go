// Package notify delivers structured alerts about job failures and quality
// gate rejections to Slack, deduplicating repeats of the same incident
// within a cooldown window.
package notify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/aicc6/weatherflick-batch/internal/telemetry"
	"github.com/aicc6/weatherflick-batch/pkg/job"
)

// Severity mirrors the job package's severity levels for alert routing.
type Severity = job.Severity

// Alert is a single structured notification.
type Alert struct {
	Title      string
	Message    string
	Severity   Severity
	Source     string // job ID or component name
	OccurredAt time.Time
}

// Notifier delivers alerts. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
	NotifyJobFailure(ctx context.Context, jobID string, err error)
}

// cooldownTracker decides whether an alert for a given incident key has
// already fired within the cooldown window, so the same failure doesn't
// page the channel on every retry.
type cooldownTracker interface {
	ShouldDeliver(ctx context.Context, key string, cooldown time.Duration) bool
}

// dispatcher wraps a concrete egress (Slack) with severity-keyed metrics
// and cooldown dedup. It implements Notifier.
type dispatcher struct {
	egress   egress
	cooldown time.Duration
	tracker  cooldownTracker
	routing  *RoutingConfig
	logger   *slog.Logger
}

// egress is the minimal surface a concrete delivery channel must provide.
type egress interface {
	Send(ctx context.Context, alert Alert) error
}

// New creates a Notifier backed by egress, deduplicating repeats of the
// same incident within cooldown using tracker. routing may be nil, in
// which case every severity is delivered.
func New(e egress, tracker cooldownTracker, cooldown time.Duration, routing *RoutingConfig, logger *slog.Logger) Notifier {
	return &dispatcher{egress: e, cooldown: cooldown, tracker: tracker, routing: routing, logger: logger}
}

func (d *dispatcher) Notify(ctx context.Context, alert Alert) error {
	if d.routing != nil && !d.routing.Allows(alert.Severity) {
		d.logger.Debug("alert below routing threshold, not delivering", "severity", alert.Severity, "title", alert.Title)
		return nil
	}

	key := incidentKey(alert)
	if !d.tracker.ShouldDeliver(ctx, key, d.cooldown) {
		d.logger.Debug("suppressing alert within cooldown window", "key", key)
		return nil
	}

	if err := d.egress.Send(ctx, alert); err != nil {
		return fmt.Errorf("delivering alert: %w", err)
	}
	telemetry.AlertsSentTotal.WithLabelValues(string(alert.Severity)).Inc()
	return nil
}

func (d *dispatcher) NotifyJobFailure(ctx context.Context, jobID string, err error) {
	severity := job.SeverityMedium
	var jerr *job.Error
	if e, ok := err.(*job.Error); ok {
		jerr = e
		severity = jerr.Severity
	}

	alert := Alert{
		Title:      fmt.Sprintf("job %s failed", jobID),
		Message:    err.Error(),
		Severity:   severity,
		Source:     jobID,
		OccurredAt: time.Now(),
	}
	if sendErr := d.Notify(ctx, alert); sendErr != nil {
		d.logger.Error("sending job failure alert", "job", jobID, "error", sendErr)
	}
}

// incidentKey collapses an alert to a stable dedup key: same source and
// title within the cooldown window count as the same incident.
func incidentKey(alert Alert) string {
	h := sha256.Sum256([]byte(alert.Source + "|" + alert.Title))
	return hex.EncodeToString(h[:])
}
