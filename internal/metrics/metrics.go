package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for upstream calls.
const (
	OutcomeOK          = "ok"
	OutcomeShapeError  = "shape_error"
	OutcomeUnavailable = "unavailable"
)

// Result labels for summary records.
const (
	ResultEmitted  = "emitted"
	ResultDegraded = "degraded"
	ResultSkipped  = "skipped"
)

// Metrics holds all Prometheus metrics for the proxy.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	UpstreamRequests *prometheus.CounterVec   // labels: operation, outcome
	UpstreamDuration *prometheus.HistogramVec // labels: operation
	SummaryRecords   *prometheus.CounterVec   // labels: result
	ValidSymbols     prometheus.Gauge
	HTTPRequests     *prometheus.CounterVec // labels: route, status
}

// NewMetrics creates the metrics on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proxy_upstream_requests_total",
			Help: "Calls made to the exchange REST API",
		}, []string{"operation", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "proxy_upstream_request_duration_seconds",
			Help:    "Exchange REST API round-trip latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation"}),
		SummaryRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proxy_summary_records_total",
			Help: "Position summary records by reconciliation result",
		}, []string{"result"}),
		ValidSymbols: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "proxy_valid_symbols",
			Help: "Size of the tradable symbol set",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proxy_http_requests_total",
			Help: "Inbound HTTP requests by route and status code",
		}, []string{"route", "status"}),
	}

	m.registry.MustRegister(
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.SummaryRecords,
		m.ValidSymbols,
		m.HTTPRequests,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveUpstream(operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(operation, outcome).Inc()
	m.UpstreamDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Metrics) RecordSummary(result string) {
	if m == nil {
		return
	}
	m.SummaryRecords.WithLabelValues(result).Inc()
}

func (m *Metrics) SetValidSymbols(n int) {
	if m == nil {
		return
	}
	m.ValidSymbols.Set(float64(n))
}

func (m *Metrics) RecordHTTP(route, status string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, status).Inc()
}
