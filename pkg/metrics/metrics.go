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
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
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

	// RouteDecisionsTotal counts routing outcomes.
	RouteDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faq_route_decisions_total",
			Help: "Total routed queries by route",
		},
		[]string{"route"},
	)

	// RoutingDuration tracks time from embedding to routing decision.
	RoutingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "faq_routing_duration_seconds",
			Help:    "Routing decision latency, embedding through decision",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"route"},
	)

	// ContextRewritesTotal counts queries rewritten with conversation context.
	ContextRewritesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "faq_context_rewrites_total",
			Help: "Queries rewritten with conversation context",
		},
	)

	// SynthCallsTotal counts synthesizer outcomes.
	SynthCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faq_synth_calls_total",
			Help: "Synthesizer calls by outcome",
		},
		[]string{"outcome"},
	)

	// SynthDuration tracks LLM synthesis latency.
	SynthDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "faq_synth_duration_seconds",
			Help:    "LLM synthesis call duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30},
		},
	)

	// SynthBreakerOpen is 1 while the synthesizer circuit is open.
	SynthBreakerOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "faq_synth_breaker_open",
			Help: "Whether the synthesizer circuit breaker is open",
		},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// SessionsActive tracks sessions held in memory.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "faq_sessions_active",
			Help: "Number of conversation sessions held in memory",
		},
	)

	// SessionStoreDegraded is 1 when the session store runs without durable backing.
	SessionStoreDegraded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "faq_session_store_degraded",
			Help: "1 when sessions are kept in memory only",
		},
	)

	// SessionPersistDropped counts session snapshots that could not be queued or saved.
	SessionPersistDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "faq_session_persist_dropped_total",
			Help: "Session snapshots dropped before reaching durable storage",
		},
	)

	// QueryLogDropped counts query log records that failed to persist.
	QueryLogDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faq_querylog_dropped_total",
			Help: "Query log records that failed to persist",
		},
		[]string{"stage"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordRoute records one routing decision.
func RecordRoute(route string, seconds float64) {
	RouteDecisionsTotal.WithLabelValues(route).Inc()
	RoutingDuration.WithLabelValues(route).Observe(seconds)
}

// RecordSynth records a synthesizer outcome.
func RecordSynth(outcome string) {
	SynthCallsTotal.WithLabelValues(outcome).Inc()
}

// RecordLLMCall records metrics for a completed LLM call.
func RecordLLMCall(model string, seconds float64, tokensIn, tokensOut int) {
	SynthDuration.Observe(seconds)
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// SetBreakerOpen updates the breaker gauge.
func SetBreakerOpen(open bool) {
	if open {
		SynthBreakerOpen.Set(1)
		return
	}
	SynthBreakerOpen.Set(0)
}

// SetSessionStoreDegraded updates the degraded-mode gauge.
func SetSessionStoreDegraded(degraded bool) {
	if degraded {
		SessionStoreDegraded.Set(1)
		return
	}
	SessionStoreDegraded.Set(0)
}
