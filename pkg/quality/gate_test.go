package quality

import (
	"testing"
	"time"

	"github.com/aicc6/weatherflick-batch/pkg/transform"
)

func testSpec() *QualitySpec {
	return &QualitySpec{
		Tables: []TableSpec{
			{
				Table:                "tourist_attractions",
				RequiredFields:       []string{"name", "address"},
				DateColumn:           "modified_time",
				ValueRanges:          map[string]ValueRange{"latitude": {Min: 33.0, Max: 38.7}},
				DuplicateKeyColumns:  []string{"content_id"},
				WeightComplete:       0.5,
				WeightValid:          0.3,
				WeightConsistent:     0.1,
				WeightFresh:          0.1,
				PassThreshold:        0.7,
				maxStalenessDuration: 24 * time.Hour,
			},
		},
	}
}

func TestGate_Evaluate_PassesCleanRows(t *testing.T) {
	gate := NewGate(testSpec())
	now := time.Now()
	fresh := now.Format("20060102150405")
	rows := []*transform.Row{
		{Table: "tourist_attractions", Fields: map[string]any{"name": "A", "address": "X", "content_id": "1", "modified_time": fresh}},
		{Table: "tourist_attractions", Fields: map[string]any{"name": "B", "address": "Y", "content_id": "2", "modified_time": fresh}},
	}

	report := gate.Evaluate("tourist_attractions", rows, now)

	if !report.Passed {
		t.Fatalf("expected report to pass, got score %.2f: %v", report.OverallScore, report.FailureReasons)
	}
	if report.Completeness != 1.0 {
		t.Fatalf("completeness = %v, want 1.0", report.Completeness)
	}
}

func TestGate_Evaluate_FailsOnMissingRequiredFields(t *testing.T) {
	gate := NewGate(testSpec())
	rows := []*transform.Row{
		{Table: "tourist_attractions", Fields: map[string]any{"name": "A"}},
	}

	report := gate.Evaluate("tourist_attractions", rows, time.Now())

	if report.Passed {
		t.Fatalf("expected report to fail with missing address field")
	}
}

func TestGate_Evaluate_UnconfiguredTableDefaultsToPass(t *testing.T) {
	gate := NewGate(testSpec())
	rows := []*transform.Row{{Table: "unconfigured_table", Fields: map[string]any{}}}

	report := gate.Evaluate("unconfigured_table", rows, time.Now())
	if !report.Passed {
		t.Fatalf("expected unconfigured table to default to pass")
	}
}

func TestCompleteness_IsBinaryPerRow(t *testing.T) {
	rows := []*transform.Row{
		{Fields: map[string]any{"name": "A", "address": "X"}},
		{Fields: map[string]any{"name": "B"}},
	}
	got := completeness(rows, []string{"name", "address"})
	if got != 0.5 {
		t.Fatalf("completeness = %v, want 0.5 (one of two rows has both fields)", got)
	}
}

func TestValidity_FlagsOutOfRangeValues(t *testing.T) {
	ranges := map[string]ValueRange{"latitude": {Min: 33.0, Max: 38.7}}
	rows := []*transform.Row{
		{Fields: map[string]any{"latitude": 37.5}},
		{Fields: map[string]any{"latitude": 90.0}},
	}
	got := validity(rows, ranges)
	if got != 0.5 {
		t.Fatalf("validity = %v, want 0.5 (one of two rows in range)", got)
	}
}

func TestConsistency_FlagsDuplicateKeys(t *testing.T) {
	rows := []*transform.Row{
		{Fields: map[string]any{"content_id": "1"}},
		{Fields: map[string]any{"content_id": "1"}},
		{Fields: map[string]any{"content_id": "2"}},
	}
	got := consistency(rows, []string{"content_id"})
	if got < 0.33 || got > 0.34 {
		t.Fatalf("consistency = %v, want ~0.33 (only the lone content_id=2 row is unique)", got)
	}
}

func TestFreshness_IsBinaryPerRow(t *testing.T) {
	now := time.Now()
	fresh := now.Format("20060102150405")
	stale := now.Add(-48 * time.Hour).Format("20060102150405")

	rows := []*transform.Row{
		{Fields: map[string]any{"modified_time": fresh}},
		{Fields: map[string]any{"modified_time": stale}},
	}
	got := freshness(rows, "modified_time", now, 24*time.Hour)
	if got != 0.5 {
		t.Fatalf("freshness = %v, want 0.5 (one of two rows within staleness window)", got)
	}

	if got := freshness(rows, "", now, 24*time.Hour); got != 0 {
		t.Fatalf("freshness with no date column = %v, want 0", got)
	}
}
