package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the ad orchestrator.
type Metrics struct {
	registry           *prometheus.Registry
	requestsTotal      prometheus.Counter
	errorsTotal        prometheus.Counter
	breaksStarted      prometheus.Counter
	breaksCompleted    prometheus.Counter
	breaksSkipped      *prometheus.CounterVec
	resolutionFailures prometheus.Counter
	trackingFired      prometheus.Counter
	trackingDropped    prometheus.Counter
	activeSessions     prometheus.Gauge
}

// New creates and registers Prometheus metrics for the orchestrator.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ad_http_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ad_http_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		breaksStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ad_breaks_started_total",
			Help: "Total number of ad breaks that became due and started loading",
		}),
		breaksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ad_breaks_completed_total",
			Help: "Total number of ad breaks played to the end",
		}),
		breaksSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ad_breaks_skipped_total",
			Help: "Total number of ad breaks consumed without being played, by reason",
		}, []string{"reason"}),
		resolutionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ad_resolution_failures_total",
			Help: "Total number of ad break resolutions that failed",
		}),
		trackingFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ad_tracking_fired_total",
			Help: "Total number of tracking URIs delivered",
		}),
		trackingDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ad_tracking_dropped_total",
			Help: "Total number of tracking URIs dropped after retries",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ad_active_sessions",
			Help: "Number of playback sessions that are not destroyed",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.breaksStarted,
		m.breaksCompleted,
		m.breaksSkipped,
		m.resolutionFailures,
		m.trackingFired,
		m.trackingDropped,
		m.activeSessions,
	)
	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncBreaksStarted increments the started breaks counter.
func (m *Metrics) IncBreaksStarted() {
	m.breaksStarted.Inc()
}

// IncBreaksCompleted increments the completed breaks counter.
func (m *Metrics) IncBreaksCompleted() {
	m.breaksCompleted.Inc()
}

// IncBreaksSkipped increments the skipped breaks counter for reason.
func (m *Metrics) IncBreaksSkipped(reason string) {
	m.breaksSkipped.WithLabelValues(reason).Inc()
}

// IncResolutionFailures increments the resolution failure counter.
func (m *Metrics) IncResolutionFailures() {
	m.resolutionFailures.Inc()
}

// IncTrackingFired increments the delivered tracking counter.
func (m *Metrics) IncTrackingFired() {
	m.trackingFired.Inc()
}

// IncTrackingDropped increments the dropped tracking counter.
func (m *Metrics) IncTrackingDropped() {
	m.trackingDropped.Inc()
}

// SetActiveSessions sets the active sessions gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active sessions).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
