// Package metrics holds Prometheus instrumentation for the query engine.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Query engine Prometheus metrics.
var (
	QueryRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datapilot",
			Name:      "query_requests_total",
			Help:      "Total number of executed queries",
		},
		[]string{"strategy", "status"},
	)

	QueryPhaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "datapilot",
			Name:      "query_phase_duration_seconds",
			Help:      "Query execution phase duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"phase"},
	)

	QueryFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "datapilot",
			Name:      "query_fallbacks_total",
			Help:      "Hard execution failures re-run as semantic search",
		},
	)

	QueryReroutesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "datapilot",
			Name:      "query_reroutes_total",
			Help:      "Low-confidence precomputed hits escalated to a full scan",
		},
	)

	RebuildSubjectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datapilot",
			Name:      "rebuild_subjects_total",
			Help:      "Aggregation subjects processed during rebuilds",
		},
		[]string{"kind", "status"},
	)

	RebuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "datapilot",
			Name:      "rebuild_duration_seconds",
			Help:      "Aggregation store rebuild duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datapilot",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "datapilot",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"model"},
	)

	CompletionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datapilot",
			Name:      "completion_requests_total",
			Help:      "Total number of completion requests",
		},
		[]string{"model", "status"},
	)

	CompletionTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datapilot",
			Name:      "completion_tokens_total",
			Help:      "Total completion tokens consumed",
		},
		[]string{"model", "type"},
	)
)

var queryMetricsRegistered bool

// RegisterQueryMetrics registers engine metrics. Must be called once from main.
func RegisterQueryMetrics() {
	if queryMetricsRegistered {
		return
	}
	prometheus.MustRegister(QueryRequestsTotal)
	prometheus.MustRegister(QueryPhaseDuration)
	prometheus.MustRegister(QueryFallbacksTotal)
	prometheus.MustRegister(QueryReroutesTotal)
	prometheus.MustRegister(RebuildSubjectsTotal)
	prometheus.MustRegister(RebuildDuration)
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	prometheus.MustRegister(CompletionRequestsTotal)
	prometheus.MustRegister(CompletionTokensTotal)
	queryMetricsRegistered = true
}
