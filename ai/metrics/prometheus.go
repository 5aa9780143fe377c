// Package metrics provides Prometheus metrics export for the librarian.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "smartlibrarian"
	subsystem = "librarian"
)

// Cache types used as the cache_type label.
const (
	CacheReuse    = "reuse"
	CacheResponse = "response"
)

// PrometheusExporter exports librarian metrics in Prometheus format.
type PrometheusExporter struct {
	registry *prometheus.Registry

	turnLatency *prometheus.HistogramVec
	turns       *prometheus.CounterVec

	toolCalls *prometheus.CounterVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	moderationBlocks prometheus.Counter
	mediaGenerations *prometheus.CounterVec

	llmTokensUsed *prometheus.CounterVec
	llmLatency    *prometheus.HistogramVec
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.turnLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "turn_latency_seconds",
		Help:      "Conversation turn latency in seconds",
		Buckets:   cfg.LatencyBuckets,
	}, []string{"operation"})

	e.turns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "turns_total",
		Help:      "Total number of processed turns by outcome",
	}, []string{"operation", "outcome"})

	e.toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "tool_calls_total",
		Help:      "Total number of model tool calls by resolution",
	}, []string{"tool_name", "status"})

	e.cacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "cache_hits_total",
		Help:      "Total number of cache hits",
	}, []string{"cache_type"})

	e.cacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "cache_misses_total",
		Help:      "Total number of cache misses",
	}, []string{"cache_type"})

	e.moderationBlocks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "moderation_blocks_total",
		Help:      "Total number of inputs blocked by moderation",
	})

	e.mediaGenerations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "media_generations_total",
		Help:      "Total number of media generation attempts",
	}, []string{"kind", "status"})

	e.llmTokensUsed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "llm_tokens_total",
		Help:      "Total LLM tokens consumed",
	}, []string{"model", "token_type"})

	e.llmLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "llm_latency_seconds",
		Help:      "LLM request latency in seconds",
		Buckets:   cfg.LatencyBuckets,
	}, []string{"model"})

	registry.MustRegister(
		e.turnLatency,
		e.turns,
		e.toolCalls,
		e.cacheHits,
		e.cacheMisses,
		e.moderationBlocks,
		e.mediaGenerations,
		e.llmTokensUsed,
		e.llmLatency,
	)

	return e
}

// RecordTurn records one orchestrated operation and its outcome label
// (ok, blocked, empty_message, not_found, upstream_failure, ...).
func (e *PrometheusExporter) RecordTurn(operation, outcome string, latency time.Duration) {
	e.turns.WithLabelValues(operation, outcome).Inc()
	e.turnLatency.WithLabelValues(operation).Observe(latency.Seconds())
}

// RecordToolCall records how a model tool call was resolved
// (resolved, miss, rejected, ignored).
func (e *PrometheusExporter) RecordToolCall(toolName, status string) {
	e.toolCalls.WithLabelValues(toolName, status).Inc()
}

// RecordCacheHit records a cache hit.
func (e *PrometheusExporter) RecordCacheHit(cacheType string) {
	e.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss.
func (e *PrometheusExporter) RecordCacheMiss(cacheType string) {
	e.cacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordModerationBlock records a flagged input.
func (e *PrometheusExporter) RecordModerationBlock() {
	e.moderationBlocks.Inc()
}

// RecordMediaGeneration records an image or audio generation attempt.
func (e *PrometheusExporter) RecordMediaGeneration(kind string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	e.mediaGenerations.WithLabelValues(kind, status).Inc()
}

// RecordLLMCall records token usage and latency of one model call.
func (e *PrometheusExporter) RecordLLMCall(model string, promptTokens, completionTokens int, latency time.Duration) {
	e.llmTokensUsed.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	e.llmTokensUsed.WithLabelValues(model, "completion").Add(float64(completionTokens))
	e.llmLatency.WithLabelValues(model).Observe(latency.Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// GetRegistry returns the Prometheus registry.
func (e *PrometheusExporter) GetRegistry() *prometheus.Registry {
	return e.registry
}
