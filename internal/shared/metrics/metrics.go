// Package metrics provides Prometheus metrics collection for the postforge API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Common labels used across metrics.
const (
	LabelMethod   = "method"
	LabelPath     = "path"
	LabelStatus   = "status"
	LabelProvider = "provider"
	LabelStep     = "step"
	LabelOutcome  = "outcome"
)

// Metrics contains all Prometheus metrics for the service.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// OAuth flow metrics
	oauthFlowTotal        *prometheus.CounterVec
	connectionsExpiring   *prometheus.GaugeVec
	providerCallDuration  *prometheus.HistogramVec

	// Auth metrics
	loginsTotal        *prometheus.CounterVec
	registrationsTotal prometheus.Counter

	// Rate limiter metrics
	rateLimitDropped *prometheus.CounterVec
}

// Config holds metrics configuration.
type Config struct {
	Namespace string
}

// New creates a new Metrics instance.
func New(cfg Config) *Metrics {
	if cfg.Namespace == "" {
		cfg.Namespace = "postforge"
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	factory := promauto.With(registry)

	m := &Metrics{registry: registry}

	m.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	m.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	m.httpRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being served.",
		},
	)

	m.oauthFlowTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "oauth_flow_total",
			Help:      "OAuth flow steps by provider and outcome.",
		},
		[]string{LabelProvider, LabelStep, LabelOutcome},
	)

	m.connectionsExpiring = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "oauth_connections_expiring",
			Help:      "Stored OAuth connections whose access token expires within 24h.",
		},
		[]string{LabelProvider},
	)

	m.providerCallDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "oauth_provider_call_duration_seconds",
			Help:      "Latency of outbound OAuth provider calls.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelProvider, LabelStep},
	)

	m.loginsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		},
		[]string{LabelOutcome},
	)

	m.registrationsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "registrations_total",
			Help:      "Successful user registrations.",
		},
	)

	m.rateLimitDropped = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "rate_limit_dropped_total",
			Help:      "Requests rejected by the rate limiter.",
		},
		[]string{LabelPath},
	)

	return m
}

// Handler returns the Prometheus metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusStr := strconv.Itoa(status)
	m.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.httpRequestDuration.WithLabelValues(method, path, statusStr).Observe(duration.Seconds())
}

// HTTPInFlightAdd adjusts the in-flight request gauge.
func (m *Metrics) HTTPInFlightAdd(delta float64) {
	m.httpRequestsInFlight.Add(delta)
}

// RecordOAuthFlow records an OAuth flow step outcome.
func (m *Metrics) RecordOAuthFlow(provider, step string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.oauthFlowTotal.WithLabelValues(provider, step, outcome).Inc()
}

// RecordProviderCall records the latency of an outbound provider call.
func (m *Metrics) RecordProviderCall(provider, step string, duration time.Duration) {
	m.providerCallDuration.WithLabelValues(provider, step).Observe(duration.Seconds())
}

// SetConnectionsExpiring sets the expiring-connections gauge for a provider.
func (m *Metrics) SetConnectionsExpiring(provider string, n float64) {
	m.connectionsExpiring.WithLabelValues(provider).Set(n)
}

// RecordLogin records a login attempt.
func (m *Metrics) RecordLogin(err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.loginsTotal.WithLabelValues(outcome).Inc()
}

// RecordRegistration records a successful registration.
func (m *Metrics) RecordRegistration() {
	m.registrationsTotal.Inc()
}

// RecordRateLimitDrop records a request rejected by the rate limiter.
func (m *Metrics) RecordRateLimitDrop(path string) {
	m.rateLimitDropped.WithLabelValues(path).Inc()
}
