package archive

import (
	"testing"
	"time"
)

func TestRetentionByProvider(t *testing.T) {
	if got := retentionByProvider["kto"]; got != 7*24*time.Hour {
		t.Errorf("kto retention = %v, want 168h", got)
	}
	if got := retentionByProvider["kma"]; got != 6*time.Hour {
		t.Errorf("kma retention = %v, want 6h", got)
	}
	if got := retentionByProvider["unknown"]; got != 0 {
		t.Errorf("unknown provider retention = %v, want 0 (no TTL configured)", got)
	}
}
