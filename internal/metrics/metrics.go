// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cloudsathi"

// Metrics bundles every collector the service records.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	AthenaQueries       *prometheus.CounterVec
	AthenaStatusChecks  prometheus.Counter
	AthenaResultPages   prometheus.Counter
	AthenaQueryDuration prometheus.Histogram

	ProviderCalls *prometheus.CounterVec
}

// New creates a Metrics with its own registry, including Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		AthenaQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "athena",
			Name:      "queries_total",
			Help:      "Athena queries by terminal outcome.",
		}, []string{"outcome"}),
		AthenaStatusChecks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "athena",
			Name:      "status_checks_total",
			Help:      "GetQueryExecution calls issued while polling.",
		}),
		AthenaResultPages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "athena",
			Name:      "result_pages_total",
			Help:      "GetQueryResults pages fetched.",
		}),
		AthenaQueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "athena",
			Name:      "query_duration_seconds",
			Help:      "Wall time from submission to terminal state.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		ProviderCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Cost provider calls by provider and result kind.",
		}, []string{"provider", "result"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPRequestDuration,
		m.AthenaQueries,
		m.AthenaStatusChecks,
		m.AthenaResultPages,
		m.AthenaQueryDuration,
		m.ProviderCalls,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveProvider records the outcome of one provider call. A nil m is a no-op.
func (m *Metrics) ObserveProvider(provider, result string) {
	if m == nil {
		return
	}
	m.ProviderCalls.WithLabelValues(provider, result).Inc()
}
