// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "webconnect"

// Metrics is the set of collectors registered on one registry
type Metrics struct {
	registry *prometheus.Registry

	HandshakesTotal   *prometheus.CounterVec
	HandshakeDuration prometheus.Histogram
	BarrierDuration   prometheus.Histogram
	BackendCalls      *prometheus.CounterVec
	ConnectionEvents  *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HandshakesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delegate_handshakes_total",
			Help:      "Delegate key handshakes by outcome.",
		}, []string{"result"}),
		HandshakeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delegate_handshake_duration_seconds",
			Help:      "Duration of delegate key handshakes, signing included.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
		BarrierDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delegate_backend_barrier_seconds",
			Help:      "Time until all delegate registrations finished or timed out.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		BackendCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delegate_backend_calls_total",
			Help:      "Create delegate calls by chain and outcome.",
		}, []string{"chain_id", "result"}),
		ConnectionEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_events_total",
			Help:      "Connection lifecycle transitions by target status.",
		}, []string{"status"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
	}
}

// ObserveHandshake records the outcome of one handshake. result is "success"
// or an error code.
func (m *Metrics) ObserveHandshake(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.HandshakesTotal.WithLabelValues(result).Inc()
	m.HandshakeDuration.Observe(d.Seconds())
}

// ObserveBarrier records the wait of the backend registration step
func (m *Metrics) ObserveBarrier(d time.Duration) {
	if m == nil {
		return
	}
	m.BarrierDuration.Observe(d.Seconds())
}

// ObserveBackendCall records one create delegate call
func (m *Metrics) ObserveBackendCall(chainID string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.BackendCalls.WithLabelValues(chainID, result).Inc()
}

// ObserveConnection records a connection reaching status
func (m *Metrics) ObserveConnection(status string) {
	if m == nil {
		return
	}
	m.ConnectionEvents.WithLabelValues(status).Inc()
}

// Registry returns the registry the collectors are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
