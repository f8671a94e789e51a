package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/GriffinCanCode/scholargate/internal/infrastructure/resilience"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Upstream metrics
	UpstreamCalls    *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	UpstreamErrors   *prometheus.CounterVec
	BreakerState     *prometheus.GaugeVec

	// Gateway rewrite metrics
	CookiesRewritten *prometheus.CounterVec
	TokensSurfaced   *prometheus.CounterVec
	LoginTransforms  *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time
}

// NewMetrics creates a metrics collector on its own registry, so several
// instances (one per test, for example) never collide.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "route"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "route"},
		),

		// Upstream metrics
		UpstreamCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_upstream_calls_total",
				Help: "Total number of calls forwarded to the upstream API",
			},
			[]string{"method", "status"},
		),
		UpstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_upstream_duration_seconds",
				Help:    "Upstream round trip duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 8, 10},
			},
			[]string{"method"},
		),
		UpstreamErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_upstream_errors_total",
				Help: "Upstream calls that failed before a response arrived",
			},
			[]string{"method", "error_type"},
		),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gateway_circuit_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),

		// Gateway rewrite metrics
		CookiesRewritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_cookies_rewritten_total",
				Help: "Upstream Set-Cookie entries rewritten for the browser, by cookie kind",
			},
			[]string{"kind"},
		),
		TokensSurfaced: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_csrf_tokens_surfaced_total",
				Help: "CSRF tokens re-emitted under the canonical header",
			},
			[]string{"source"},
		),
		LoginTransforms: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_login_transforms_total",
				Help: "Login bodies re-encoded as forms, by outcome",
			},
			[]string{"outcome"},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "gateway_uptime_seconds",
			Help: "Gateway uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry exposes the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an inbound HTTP request
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, route).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, route).Observe(float64(respSize))
}

// RecordUpstreamCall records a completed upstream round trip
func (m *Metrics) RecordUpstreamCall(method, status string, duration time.Duration) {
	m.UpstreamCalls.WithLabelValues(method, status).Inc()
	m.UpstreamDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordUpstreamError records an upstream call that produced no response
func (m *Metrics) RecordUpstreamError(method, errorType string) {
	m.UpstreamErrors.WithLabelValues(method, errorType).Inc()
}

// SetBreakerState publishes a circuit breaker transition
func (m *Metrics) SetBreakerState(name string, state resilience.State) {
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

// IncCookieRewritten counts one rewritten Set-Cookie entry. kind must come
// from a fixed set (session, csrf, other), never the raw cookie name.
func (m *Metrics) IncCookieRewritten(kind string) {
	m.CookiesRewritten.WithLabelValues(kind).Inc()
}

// IncTokenSurfaced counts a CSRF token exposed to the browser
func (m *Metrics) IncTokenSurfaced(source string) {
	m.TokensSurfaced.WithLabelValues(source).Inc()
}

// IncLoginTransform counts a login body rewrite attempt
func (m *Metrics) IncLoginTransform(outcome string) {
	m.LoginTransforms.WithLabelValues(outcome).Inc()
}
