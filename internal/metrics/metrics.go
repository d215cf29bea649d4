// Package metrics exposes Prometheus instrumentation for the recommendation
// pipeline, the LLM backends and the HTTP surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline
	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoagent_recommendations_total",
			Help: "Recommendation requests by the path that produced the result",
		},
		[]string{"path"}, // llm, deterministic, same_category, scored_top, empty
	)

	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recoagent_recommendation_duration_seconds",
			Help:    "End-to-end pipeline duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	StageCandidates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recoagent_stage_candidates",
			Help:    "Number of candidates leaving each pipeline stage",
			Buckets: []float64{0, 1, 5, 10, 30, 100, 300, 1000},
		},
		[]string{"stage"}, // retrieve, build, shortlist, validate
	)

	ValidatorDrops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoagent_validator_drops_total",
			Help: "Candidates dropped by validator gates",
		},
		[]string{"gate"},
	)

	// LLM
	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoagent_llm_requests_total",
			Help: "LLM re-rank attempts by model and result",
		},
		[]string{"model", "result"}, // ok, client_error, parse_error, empty
	)

	LLMDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recoagent_llm_duration_seconds",
			Help:    "Duration of LLM generate calls in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"model"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recoagent_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoagent_circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker by result",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	// HTTP
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoagent_api_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"method", "route", "status"},
	)

	APIDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recoagent_api_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Catalog
	CatalogLoadErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoagent_catalog_errors_total",
			Help: "Catalog backend errors by source",
		},
		[]string{"source"},
	)
)

// RecordRecommendation records a finished pipeline run.
func RecordRecommendation(path string, d time.Duration) {
	RecommendationsTotal.WithLabelValues(path).Inc()
	RecommendationDuration.Observe(d.Seconds())
}

// RecordStage records how many candidates left a stage.
func RecordStage(stage string, n int) {
	StageCandidates.WithLabelValues(stage).Observe(float64(n))
}

// RecordLLM records one LLM attempt.
func RecordLLM(model, result string, d time.Duration) {
	LLMRequests.WithLabelValues(model, result).Inc()
	LLMDuration.WithLabelValues(model).Observe(d.Seconds())
}

// RecordAPIRequest records one HTTP request.
func RecordAPIRequest(method, route, status string, d time.Duration) {
	APIRequests.WithLabelValues(method, route, status).Inc()
	APIDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
