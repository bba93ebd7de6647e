package notify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aicc6/weatherflick-batch/internal/validate"
	"github.com/aicc6/weatherflick-batch/pkg/job"
)

// RoutingConfig declares the minimum severity that reaches Slack, loaded
// from config/monitoring.yaml. Job failures below the threshold are still
// logged and recorded in the job ledger, just never paged.
type RoutingConfig struct {
	MinSeverity job.Severity `yaml:"min_severity" validate:"required,oneof=low medium high critical"`
}

var severityRank = map[job.Severity]int{
	job.SeverityLow:      0,
	job.SeverityMedium:   1,
	job.SeverityHigh:     2,
	job.SeverityCritical: 3,
}

// LoadRoutingConfig reads and validates a RoutingConfig document from path.
func LoadRoutingConfig(path string) (*RoutingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading monitoring config: %w", err)
	}

	var rc RoutingConfig
	if err := yaml.Unmarshal(data, &rc); err != nil {
		return nil, fmt.Errorf("parsing monitoring config: %w", err)
	}
	if err := validate.Error(&rc); err != nil {
		return nil, err
	}
	return &rc, nil
}

// Allows reports whether an alert of sev clears the configured threshold.
func (rc *RoutingConfig) Allows(sev job.Severity) bool {
	return severityRank[sev] >= severityRank[rc.MinSeverity]
}
