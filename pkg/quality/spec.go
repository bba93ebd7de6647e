// Package quality implements the declarative quality gate: a YAML-defined
// QualitySpec per table describing what "good data" means, scored against
// a completeness/validity/consistency/freshness rubric, with a weighted
// overall score gating whether a batch's output is accepted.
package quality

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aicc6/weatherflick-batch/internal/validate"
)

// ValueRange declares the inclusive bounds a numeric field's value must
// fall within for validity scoring.
type ValueRange struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// TableSpec declares the quality expectations for one destination table.
type TableSpec struct {
	Table               string                `yaml:"table" validate:"required"`
	RequiredFields      []string              `yaml:"required_fields" validate:"required,min=1"`
	DateColumn          string                `yaml:"date_column"`
	MaxStaleness        string                `yaml:"max_staleness" validate:"required"`
	ValueRanges         map[string]ValueRange `yaml:"value_ranges"`
	DuplicateKeyColumns []string              `yaml:"duplicate_key_columns"`
	WeightComplete      float64               `yaml:"weight_completeness" validate:"gte=0,lte=1"`
	WeightValid         float64               `yaml:"weight_validity" validate:"gte=0,lte=1"`
	WeightConsistent    float64               `yaml:"weight_consistency" validate:"gte=0,lte=1"`
	WeightFresh         float64               `yaml:"weight_freshness" validate:"gte=0,lte=1"`
	PassThreshold       float64               `yaml:"pass_threshold" validate:"gt=0,lte=1"`

	maxStalenessDuration time.Duration
}

// QualitySpec is the top-level document loaded from config/quality_checks.yaml.
type QualitySpec struct {
	Tables []TableSpec `yaml:"tables" validate:"required,min=1"`
}

// LoadSpec reads and validates a QualitySpec document from path.
func LoadSpec(path string) (*QualitySpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading quality spec: %w", err)
	}

	var spec QualitySpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing quality spec: %w", err)
	}

	if err := validate.Error(&spec); err != nil {
		return nil, err
	}

	for i := range spec.Tables {
		d, err := time.ParseDuration(spec.Tables[i].MaxStaleness)
		if err != nil {
			return nil, fmt.Errorf("table %s: invalid max_staleness %q: %w", spec.Tables[i].Table, spec.Tables[i].MaxStaleness, err)
		}
		spec.Tables[i].maxStalenessDuration = d
	}

	return &spec, nil
}

// For returns the TableSpec for a table name, or nil if none is declared.
func (s *QualitySpec) For(table string) *TableSpec {
	for i := range s.Tables {
		if s.Tables[i].Table == table {
			return &s.Tables[i]
		}
	}
	return nil
}
