package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	artifactsExtractedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schemaquery_artifacts_extracted_total",
			Help: "Total number of artifacts extracted by kind and status.",
		},
		[]string{"kind", "status"},
	)
	schemaStatementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schemaquery_schema_statements_total",
			Help: "Total number of translated DDL statements applied to request engines by outcome.",
		},
		[]string{"outcome"},
	)
	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schemaquery_generations_total",
			Help: "Total number of generated queries by provenance.",
		},
		[]string{"generated_by"},
	)
	suspiciousRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "schemaquery_suspicious_requests_total",
			Help: "Total number of natural-language requests carrying a SQL injection fingerprint.",
		},
	)
	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schemaquery_executions_total",
			Help: "Total number of query executions by status.",
		},
		[]string{"status"},
	)
	executionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "schemaquery_execution_duration_seconds",
			Help:    "Query execution latency against request engines.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		artifactsExtractedTotal,
		schemaStatementsTotal,
		generationsTotal,
		suspiciousRequestsTotal,
		executionsTotal,
		executionDurationSeconds,
	)
}

func ObserveExtraction(kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	artifactsExtractedTotal.WithLabelValues(kind, status).Inc()
}

func ObserveSchemaLoad(applied, failed int) {
	if applied > 0 {
		schemaStatementsTotal.WithLabelValues("applied").Add(float64(applied))
	}
	if failed > 0 {
		schemaStatementsTotal.WithLabelValues("failed").Add(float64(failed))
	}
}

func ObserveGeneration(generatedBy string) {
	generationsTotal.WithLabelValues(generatedBy).Inc()
}

func IncrementSuspiciousRequest() {
	suspiciousRequestsTotal.Inc()
}

// ObserveExecution records one execution; status is ok, error or timeout.
func ObserveExecution(status string, elapsed time.Duration) {
	executionsTotal.WithLabelValues(status).Inc()
	executionDurationSeconds.Observe(elapsed.Seconds())
}
