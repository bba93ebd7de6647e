package quality

import (
	"os"
	"path/filepath"
	"testing"
)

const validSpecYAML = `
tables:
  - table: tourist_attractions
    required_fields: [name, address]
    max_staleness: 24h
    weight_completeness: 0.5
    weight_validity: 0.3
    weight_consistency: 0.1
    weight_freshness: 0.1
    pass_threshold: 0.7
`

func writeSpecFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quality_checks.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestLoadSpec_ValidDocument(t *testing.T) {
	path := writeSpecFile(t, validSpecYAML)

	spec, err := LoadSpec(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(spec.Tables) != 1 {
		t.Fatalf("tables = %d, want 1", len(spec.Tables))
	}

	ts := spec.For("tourist_attractions")
	if ts == nil {
		t.Fatalf("expected a spec for tourist_attractions")
	}
	if ts.maxStalenessDuration.Hours() != 24 {
		t.Fatalf("maxStalenessDuration = %v, want 24h", ts.maxStalenessDuration)
	}
}

func TestLoadSpec_MissingFile(t *testing.T) {
	if _, err := LoadSpec(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}

func TestLoadSpec_InvalidStalenessDuration(t *testing.T) {
	path := writeSpecFile(t, `
tables:
  - table: tourist_attractions
    required_fields: [name]
    max_staleness: not-a-duration
    weight_completeness: 0.5
    weight_validity: 0.3
    weight_consistency: 0.1
    weight_freshness: 0.1
    pass_threshold: 0.7
`)

	if _, err := LoadSpec(path); err == nil {
		t.Fatalf("expected an error for an unparseable max_staleness")
	}
}

func TestLoadSpec_FailsValidationWithoutTables(t *testing.T) {
	path := writeSpecFile(t, "tables: []\n")

	if _, err := LoadSpec(path); err == nil {
		t.Fatalf("expected a validation error for an empty tables list")
	}
}

func TestQualitySpec_ForReturnsNilWhenUnknown(t *testing.T) {
	spec := &QualitySpec{Tables: []TableSpec{{Table: "tourist_attractions"}}}
	if got := spec.For("restaurants"); got != nil {
		t.Fatalf("For(unknown) = %v, want nil", got)
	}
}
