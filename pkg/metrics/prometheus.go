// Package metrics provides Prometheus metrics for the travelogue service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// POI lookup outcomes.
const (
	LookupSuccess  = "success"
	LookupRetry    = "retry"
	LookupDegraded = "degraded"
)

// scoreBuckets cover [0,1] similarity scores in 0.05 steps.
var scoreBuckets = prometheus.LinearBuckets(0.05, 0.05, 20)

// Manager owns every collector of the service.
type Manager struct {
	namespace      string
	latencyBuckets []float64
	registry       prometheus.Registerer

	poiLookups *prometheus.CounterVec

	generations        *prometheus.CounterVec
	generationDuration prometheus.Histogram

	evaluations    *prometheus.CounterVec
	evaluationF1   prometheus.Histogram
	sentimentDelta prometheus.Histogram

	verdicts *prometheus.CounterVec

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var globalManager *Manager

// customRegistry keeps the Go runtime collectors out of /metrics.
var customRegistry = prometheus.NewRegistry()

func init() {
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "travelogue",
		latencyBuckets: prometheus.DefBuckets,
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.poiLookups = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "context",
		Name:      "poi_lookups_total",
		Help:      "Waypoint POI lookups by outcome (success, retry, degraded)",
	}, []string{"outcome"})

	m.generations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "narrator",
		Name:      "generations_total",
		Help:      "Travelogue generations by status",
	}, []string{"status"})

	m.generationDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "narrator",
		Name:      "generation_duration_seconds",
		Help:      "Wall time of a travelogue generation, context assembly included",
		Buckets:   m.latencyBuckets,
	})

	m.evaluations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "evaluation",
		Name:      "evaluations_total",
		Help:      "Stored evaluations by equivalence outcome",
	}, []string{"equivalent"})

	m.evaluationF1 = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "evaluation",
		Name:      "bertscore_f1",
		Help:      "Distribution of similarity F1 scores",
		Buckets:   scoreBuckets,
	})

	m.sentimentDelta = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "evaluation",
		Name:      "sentiment_delta",
		Help:      "Absolute difference between human and generated compound sentiment",
		Buckets:   prometheus.LinearBuckets(0.1, 0.1, 20),
	})

	m.verdicts = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "evaluation",
		Name:      "verdicts_total",
		Help:      "Population verdicts by test and outcome",
	}, []string{"test", "reject_h0"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   m.latencyBuckets,
	}, []string{"endpoint", "method"})
}

// RecordPOILookup counts one lookup attempt outcome.
func (m *Manager) RecordPOILookup(outcome string) {
	m.poiLookups.WithLabelValues(outcome).Inc()
}

// RecordGeneration counts a generation and observes its duration.
func (m *Manager) RecordGeneration(status string, seconds float64) {
	m.generations.WithLabelValues(status).Inc()
	m.generationDuration.Observe(seconds)
}

// RecordEvaluation counts an evaluation and observes its scores.
func (m *Manager) RecordEvaluation(f1 float64, equivalent bool, sentimentDelta float64) {
	m.evaluations.WithLabelValues(boolLabel(equivalent)).Inc()
	m.evaluationF1.Observe(f1)
	if sentimentDelta < 0 {
		sentimentDelta = -sentimentDelta
	}
	m.sentimentDelta.Observe(sentimentDelta)
}

// RecordVerdict counts one population verdict.
func (m *Manager) RecordVerdict(test string, rejectH0 bool) {
	m.verdicts.WithLabelValues(test, boolLabel(rejectH0)).Inc()
}

// RecordHTTPRequest counts a request and observes its duration.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, seconds float64) {
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method).Observe(seconds)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Package-level helpers record on the global manager.

func RecordPOILookup(outcome string) { globalManager.RecordPOILookup(outcome) }

func RecordGeneration(status string, seconds float64) {
	globalManager.RecordGeneration(status, seconds)
}

func RecordEvaluation(f1 float64, equivalent bool, sentimentDelta float64) {
	globalManager.RecordEvaluation(f1, equivalent, sentimentDelta)
}

func RecordVerdict(test string, rejectH0 bool) { globalManager.RecordVerdict(test, rejectH0) }

func RecordHTTPRequest(endpoint, method, statusCode string, seconds float64) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode, seconds)
}

// GetRegistry returns the registry served on /metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
