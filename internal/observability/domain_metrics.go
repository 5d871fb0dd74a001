package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	askRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askduck_ask_requests_total",
			Help: "Total number of natural-language query requests by outcome.",
		},
		[]string{"outcome"},
	)
	guardrailRejectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askduck_guardrail_rejects_total",
			Help: "Total number of SQL statements rejected by the guardrail.",
		},
		[]string{"kind"},
	)
	repairAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askduck_repair_attempts_total",
			Help: "Total number of repair attempts by outcome.",
		},
		[]string{"outcome"},
	)
	executionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askduck_sql_execution_duration_seconds",
			Help:    "Latency of SQL execution against the active dataset.",
			Buckets: prometheus.DefBuckets,
		},
	)
	datasetRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "askduck_dataset_rows",
			Help: "Row count of the active dataset.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		askRequestsTotal,
		guardrailRejectsTotal,
		repairAttemptsTotal,
		executionDurationSeconds,
		datasetRows,
	)
}

func ObserveAsk(outcome string) {
	askRequestsTotal.WithLabelValues(outcome).Inc()
}

func ObserveGuardrailReject(kind string) {
	guardrailRejectsTotal.WithLabelValues(kind).Inc()
}

func ObserveRepair(outcome string) {
	repairAttemptsTotal.WithLabelValues(outcome).Inc()
}

func ObserveExecution(elapsed time.Duration) {
	executionDurationSeconds.Observe(elapsed.Seconds())
}

func SetDatasetRows(count int64) {
	if count < 0 {
		count = 0
	}
	datasetRows.Set(float64(count))
}
