// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// MediationsTotal counts mediation calls by outcome (parsed, fallback, failed, invalid).
	MediationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediations_total",
			Help: "Total mediation calls by outcome",
		},
		[]string{"outcome"},
	)

	// MediationDuration tracks end-to-end mediation latency.
	MediationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediation_duration_seconds",
			Help:    "End-to-end mediation duration",
			Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 45, 60},
		},
		[]string{"outcome"},
	)

	// LLMRequestDuration tracks model completion latency.
	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "LLM completion request duration",
			Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 45, 60},
		},
		[]string{"provider", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// ModelParseFailures counts model replies that did not match the schema.
	ModelParseFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_parse_failures_total",
			Help: "Model replies that failed schema parsing, by attempt",
		},
		[]string{"attempt"},
	)

	// ScoreRepairs counts win meters that had to be rescaled to sum to 100.
	ScoreRepairs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediation_score_repairs_total",
			Help: "Win meters rescaled to sum to 100",
		},
	)

	// EncryptionDegraded counts mediator messages stored as plaintext because encryption failed.
	EncryptionDegraded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediation_encryption_degraded_total",
			Help: "Mediator messages stored unencrypted after an encryption failure",
		},
	)

	// RoomKeysCreated counts room keys created, by whether this caller won the insert race.
	RoomKeysCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "room_keys_created_total",
			Help: "Room key creation attempts by result",
		},
		[]string{"result"},
	)

	// RoomRetitles counts mediator-applied room titles.
	RoomRetitles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "room_retitles_total",
			Help: "Room titles set from mediator suggestions",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordMediation records the outcome of one mediation call.
func RecordMediation(outcome string, duration float64) {
	MediationsTotal.WithLabelValues(outcome).Inc()
	MediationDuration.WithLabelValues(outcome).Observe(duration)
}

// RecordLLMCall records metrics for one completion request.
func RecordLLMCall(provider, model, status string, duration float64, tokensIn, tokensOut int) {
	LLMRequestDuration.WithLabelValues(provider, status).Observe(duration)
	if model != "" {
		LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
		LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
	}
}
