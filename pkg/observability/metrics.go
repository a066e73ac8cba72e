// Package observability provides Prometheus metrics and tracing helpers for
// the request pipeline and the AI provider calls.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation label values.
const (
	OperationAnalyze    = "analyze"
	OperationTranscribe = "transcribe"
)

// Access outcome label values.
const (
	AccessPrivileged   = "privileged"
	AccessDemo         = "demo"
	AccessRateLimited  = "rate_limited"
	AccessUnauthorized = "unauthorized"
	AccessError        = "error"
)

// Status label values for AI operations.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics holds the service's Prometheus collectors. All Record methods are
// safe to call on a nil *Metrics.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal  *prometheus.CounterVec
	HTTPRequestSeconds *prometheus.HistogramVec

	// Access metrics
	AccessDecisionsTotal *prometheus.CounterVec

	// AI provider metrics
	AIOperationsTotal *prometheus.CounterVec
	AILatencySeconds  *prometheus.HistogramVec
	AITokensTotal     *prometheus.CounterVec

	// Normalizer metrics
	NormalizeTotal        *prometheus.CounterVec
	SchemaViolationsTotal prometheus.Counter
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "minutes_http_requests_total",
				Help: "Total HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		HTTPRequestSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "minutes_http_request_seconds",
				Help:    "HTTP request latency",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"route"},
		),

		AccessDecisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "minutes_access_decisions_total",
				Help: "Access gate decisions by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),

		AIOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "minutes_ai_operations_total",
				Help: "Total AI provider calls",
			},
			[]string{"operation", "model", "status"},
		),
		AILatencySeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "minutes_ai_latency_seconds",
				Help:    "AI provider call latency",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 15, 30, 60, 120},
			},
			[]string{"operation", "model"},
		),
		AITokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "minutes_ai_tokens_total",
				Help: "Total tokens processed",
			},
			[]string{"direction", "model"},
		),

		NormalizeTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "minutes_normalize_total",
				Help: "Model replies normalized, by the strategy that parsed them",
			},
			[]string{"strategy"},
		),
		SchemaViolationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "minutes_schema_violations_total",
				Help: "Normalized results that did not match the result schema",
			},
		),
	}
}

// RecordHTTPRequest records a completed HTTP request.
func (m *Metrics) RecordHTTPRequest(route, code string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, code).Inc()
	m.HTTPRequestSeconds.WithLabelValues(route).Observe(seconds)
}

// RecordAccess records an access gate decision.
func (m *Metrics) RecordAccess(operation, outcome string) {
	if m == nil {
		return
	}
	m.AccessDecisionsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordAIOperation records a provider call.
func (m *Metrics) RecordAIOperation(operation, model, status string, seconds float64) {
	if m == nil {
		return
	}
	m.AIOperationsTotal.WithLabelValues(operation, model, status).Inc()
	m.AILatencySeconds.WithLabelValues(operation, model).Observe(seconds)
}

// RecordTokens records token usage for a model.
func (m *Metrics) RecordTokens(model string, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.AITokensTotal.WithLabelValues("input", model).Add(float64(inputTokens))
	m.AITokensTotal.WithLabelValues("output", model).Add(float64(outputTokens))
}

// RecordNormalize records which strategy parsed a model reply, or "failed".
func (m *Metrics) RecordNormalize(strategy string) {
	if m == nil {
		return
	}
	m.NormalizeTotal.WithLabelValues(strategy).Inc()
}

// RecordSchemaViolation counts a result that failed the schema check.
func (m *Metrics) RecordSchemaViolation() {
	if m == nil {
		return
	}
	m.SchemaViolationsTotal.Inc()
}
