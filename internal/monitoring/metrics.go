package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the container.
type Metrics struct {
	registry *prometheus.Registry

	// Lifecycle metrics
	LifecycleOps   *prometheus.CounterVec
	ModulesByState *prometheus.GaugeVec
	Events         *prometheus.CounterVec

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Event stream metrics
	StreamClients prometheus.Gauge

	startTime time.Time
	uptime    prometheus.GaugeFunc
}

// NewMetrics creates a metrics collector with its own registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry:  registry,
		startTime: time.Now(),

		LifecycleOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "container_lifecycle_ops_total",
				Help: "Total module lifecycle operations by outcome",
			},
			[]string{"op", "outcome"},
		),
		ModulesByState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "container_modules",
				Help: "Known modules by lifecycle state",
			},
			[]string{"state"},
		),
		Events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "container_lifecycle_events_total",
				Help: "Lifecycle notifications fanned out to subscribers",
			},
			[]string{"kind"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "container_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "container_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		StreamClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "container_stream_clients",
				Help: "Connected lifecycle event stream clients",
			},
		),
	}

	m.uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "container_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordLifecycleOp records one lifecycle operation outcome.
func (m *Metrics) RecordLifecycleOp(op string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.LifecycleOps.WithLabelValues(op, outcome).Inc()
}

// RecordEvent records one lifecycle notification.
func (m *Metrics) RecordEvent(kind string) {
	m.Events.WithLabelValues(kind).Inc()
}

// SetModuleState sets the gauge for one lifecycle state.
func (m *Metrics) SetModuleState(state string, count float64) {
	m.ModulesByState.WithLabelValues(state).Set(count)
}

// RecordHTTPRequest records one management API request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Handler exposes the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
