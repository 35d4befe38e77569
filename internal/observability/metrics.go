package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/upb/genai-gateway/services/providers"
)

const namespace = "gateway"

// Metrics owns a private Prometheus registry so that many instances can
// coexist, one per test server.
type Metrics struct {
	registry *prometheus.Registry

	tokenExhausted   *prometheus.CounterVec
	rotationAttempts *prometheus.CounterVec
	upstreamErrors   *prometheus.CounterVec
	asyncPolls       *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewMetrics registers all gateway collectors on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		tokenExhausted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_exhausted_total",
			Help:      "Tokens marked exhausted after a quota-class failure",
		}, []string{"channel"}),
		rotationAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rotation_attempts_total",
			Help:      "Token rotation attempts by outcome",
		}, []string{"channel", "outcome"}),
		upstreamErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Failed generation requests by error kind",
		}, []string{"channel", "kind"}),
		asyncPolls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "async_polls_total",
			Help:      "Async task polls by result",
		}, []string{"channel", "result"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"method", "route"}),
	}
}

// TokenExhausted implements tokens.Observer
func (m *Metrics) TokenExhausted(channelID string) {
	m.tokenExhausted.WithLabelValues(channelID).Inc()
}

// RotationAttempt implements tokens.Observer
func (m *Metrics) RotationAttempt(channelID, outcome string) {
	m.rotationAttempts.WithLabelValues(channelID, outcome).Inc()
}

// AsyncPoll implements asynctask.Observer
func (m *Metrics) AsyncPoll(channelID, result string) {
	m.asyncPolls.WithLabelValues(channelID, result).Inc()
}

// UpstreamError implements generation.ErrorObserver
func (m *Metrics) UpstreamError(channelID string, kind providers.Kind) {
	m.upstreamErrors.WithLabelValues(channelID, string(kind)).Inc()
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Registry exposes the underlying registry for tests and extra collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
