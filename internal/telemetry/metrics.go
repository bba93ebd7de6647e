package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// JobExecutionsTotal counts scheduler job runs by job id and terminal status.
var JobExecutionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "weatherflick",
		Subsystem: "jobs",
		Name:      "executions_total",
		Help:      "Total number of job executions by job id and status.",
	},
	[]string{"job_id", "status"},
)

// JobDuration tracks job execution wall-clock time.
var JobDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "weatherflick",
		Subsystem: "jobs",
		Name:      "duration_seconds",
		Help:      "Job execution duration in seconds.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	},
	[]string{"job_id"},
)

// APICallsTotal counts outbound provider calls by provider and outcome.
var APICallsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "weatherflick",
		Subsystem: "gateway",
		Name:      "api_calls_total",
		Help:      "Total number of outbound provider API calls by provider and outcome.",
	},
	[]string{"provider", "outcome"},
)

// APICallDuration tracks outbound provider call latency.
var APICallDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "weatherflick",
		Subsystem: "gateway",
		Name:      "api_call_duration_seconds",
		Help:      "Outbound provider API call duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"provider"},
)

// KeyRotationsTotal counts key-rotation events by provider and reason.
var KeyRotationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "weatherflick",
		Subsystem: "keyregistry",
		Name:      "rotations_total",
		Help:      "Total number of key rotation events by provider and reason.",
	},
	[]string{"provider", "reason"},
)

// QuotaExhaustedTotal counts QuotaExhausted occurrences by provider.
var QuotaExhaustedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "weatherflick",
		Subsystem: "keyregistry",
		Name:      "quota_exhausted_total",
		Help:      "Total number of QuotaExhausted errors by provider.",
	},
	[]string{"provider"},
)

// UpsertRowsTotal counts rows landed by the bulk upsert engine by table.
var UpsertRowsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "weatherflick",
		Subsystem: "upsert",
		Name:      "rows_total",
		Help:      "Total number of rows successfully upserted by target table.",
	},
	[]string{"table"},
)

// UpsertChunkFailuresTotal counts chunk failures by table.
var UpsertChunkFailuresTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "weatherflick",
		Subsystem: "upsert",
		Name:      "chunk_failures_total",
		Help:      "Total number of failed upsert chunks by target table.",
	},
	[]string{"table"},
)

// QualityScore reports the most recent overall quality score per table.
var QualityScore = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "weatherflick",
		Subsystem: "quality",
		Name:      "score",
		Help:      "Most recent overall quality score per table, in [0,1].",
	},
	[]string{"table"},
)

// AlertsSentTotal counts notification egress by severity.
var AlertsSentTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "weatherflick",
		Subsystem: "notify",
		Name:      "alerts_sent_total",
		Help:      "Total number of alerts delivered by severity.",
	},
	[]string{"severity"},
)

// All returns every weatherflick-specific collector for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		JobExecutionsTotal,
		JobDuration,
		APICallsTotal,
		APICallDuration,
		KeyRotationsTotal,
		QuotaExhaustedTotal,
		UpsertRowsTotal,
		UpsertChunkFailuresTotal,
		QualityScore,
		AlertsSentTotal,
	}
}

// NewRegistry creates a Prometheus registry with Go/process collectors and
// every weatherflick-specific collector.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	for _, c := range All() {
		reg.MustRegister(c)
	}
	return reg
}
