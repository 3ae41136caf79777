package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Project outcomes recorded by IncProject.
const (
	OutcomeReady   = "ready"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Metrics holds Prometheus counters and gauges for proofbuild.
type Metrics struct {
	registry        *prometheus.Registry
	pollsTotal      prometheus.Counter
	pollErrorsTotal prometheus.Counter
	manifestsFound  prometheus.Gauge
	projectsTotal   *prometheus.CounterVec
	retriesTotal    *prometheus.CounterVec
	requestsTotal   prometheus.Counter
	httpErrorsTotal prometheus.Counter
}

// New creates and registers the proofbuild metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	pollsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proofbuild_polls_total",
		Help: "Total number of discovery polls started",
	})
	pollErrorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proofbuild_poll_errors_total",
		Help: "Total number of polls that failed to list manifests",
	})
	manifestsFound := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "proofbuild_manifests_found",
		Help: "Manifests found by the most recent poll",
	})
	projectsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "proofbuild_projects_total",
		Help: "Projects handled by the poller, by outcome",
	}, []string{"outcome"})
	retriesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "proofbuild_generation_retries_total",
		Help: "Retries of generator calls, by operation",
	}, []string{"operation"})
	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proofbuild_http_requests_total",
		Help: "Total number of HTTP requests received",
	})
	httpErrorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proofbuild_http_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})

	registry.MustRegister(
		pollsTotal,
		pollErrorsTotal,
		manifestsFound,
		projectsTotal,
		retriesTotal,
		requestsTotal,
		httpErrorsTotal,
	)

	return &Metrics{
		registry:        registry,
		pollsTotal:      pollsTotal,
		pollErrorsTotal: pollErrorsTotal,
		manifestsFound:  manifestsFound,
		projectsTotal:   projectsTotal,
		retriesTotal:    retriesTotal,
		requestsTotal:   requestsTotal,
		httpErrorsTotal: httpErrorsTotal,
	}
}

// Registry exposes the underlying registry for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// IncPolls increments the poll counter.
func (m *Metrics) IncPolls() {
	if m != nil {
		m.pollsTotal.Inc()
	}
}

// IncPollErrors increments the failed poll counter.
func (m *Metrics) IncPollErrors() {
	if m != nil {
		m.pollErrorsTotal.Inc()
	}
}

// SetManifestsFound records how many manifests the last poll listed.
func (m *Metrics) SetManifestsFound(n int) {
	if m != nil {
		m.manifestsFound.Set(float64(n))
	}
}

// IncProject counts one project handled with the given outcome.
func (m *Metrics) IncProject(outcome string) {
	if m != nil {
		m.projectsTotal.WithLabelValues(outcome).Inc()
	}
}

// IncRetries counts one retry of operation.
func (m *Metrics) IncRetries(operation string) {
	if m != nil {
		m.retriesTotal.WithLabelValues(operation).Inc()
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	if m != nil {
		m.requestsTotal.Inc()
	}
}

// IncErrors increments the HTTP error counter.
func (m *Metrics) IncErrors() {
	if m != nil {
		m.httpErrorsTotal.Inc()
	}
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
