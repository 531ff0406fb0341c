// Package metrics provides Prometheus metrics for the ward dashboard.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wardboard/go-ward/internal/notify"
)

// Metrics holds all application metrics
type Metrics struct {
	StoreQueries        *prometheus.CounterVec
	StoreDuration       *prometheus.HistogramVec
	Notifications       *prometheus.CounterVec
	StaleDiscarded      *prometheus.CounterVec
	Discharges          *prometheus.CounterVec
	CircuitBreakerState *prometheus.GaugeVec
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates all metrics and registers them with reg. A nil reg uses a
// fresh registry so tests and multiple servers do not collide.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		StoreQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ward_store_queries_total",
			Help: "Data store calls by table, operation and outcome",
		}, []string{"table", "op", "outcome"}),
		StoreDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ward_store_query_duration_seconds",
			Help:    "Data store call duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"table", "op"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ward_notifications_total",
			Help: "User notifications emitted by level",
		}, []string{"level"}),
		StaleDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ward_stale_responses_discarded_total",
			Help: "Fetch responses discarded because a newer request superseded them",
		}, []string{"resource"}),
		Discharges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ward_discharges_total",
			Help: "Discharge attempts by outcome",
		}, []string{"outcome"}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ward_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ward_http_requests_total",
			Help: "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ward_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.StoreQueries,
		m.StoreDuration,
		m.Notifications,
		m.StaleDiscarded,
		m.Discharges,
		m.CircuitBreakerState,
		m.HTTPRequests,
		m.HTTPDuration,
	)

	return m
}

// ObserveQuery records one data store call
func (m *Metrics) ObserveQuery(table, op, outcome string, d time.Duration) {
	m.StoreQueries.WithLabelValues(table, op, outcome).Inc()
	m.StoreDuration.WithLabelValues(table, op).Observe(d.Seconds())
}

// ObserveStale counts a discarded stale response
func (m *Metrics) ObserveStale(resource string) {
	m.StaleDiscarded.WithLabelValues(resource).Inc()
}

// ObserveDischarge counts one discharge attempt
func (m *Metrics) ObserveDischarge(outcome string) {
	m.Discharges.WithLabelValues(outcome).Inc()
}

// SetBreakerState exports a breaker transition
func (m *Metrics) SetBreakerState(name, state string) {
	v := 0.0
	switch state {
	case "open":
		v = 1
	case "half-open":
		v = 2
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(v)
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(route, method string, status int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// Notifier counts notices by level
func (m *Metrics) Notifier() notify.Notifier {
	return notify.Func(func(_ context.Context, n notify.Notice) {
		m.Notifications.WithLabelValues(string(n.Level)).Inc()
	})
}

// Handler returns the Prometheus HTTP handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
