package notify

import (
	"testing"

	"github.com/aicc6/weatherflick-batch/pkg/job"
)

func TestRoutingConfig_Allows(t *testing.T) {
	rc := &RoutingConfig{MinSeverity: job.SeverityMedium}

	cases := []struct {
		sev  job.Severity
		want bool
	}{
		{job.SeverityLow, false},
		{job.SeverityMedium, true},
		{job.SeverityHigh, true},
		{job.SeverityCritical, true},
	}
	for _, c := range cases {
		if got := rc.Allows(c.sev); got != c.want {
			t.Errorf("Allows(%q) = %v, want %v", c.sev, got, c.want)
		}
	}
}
