// Package metrics exposes Prometheus metrics for indicator computation and storage.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the indicator engine metrics. A nil *Metrics is a no-op.
type Metrics struct {
	ComputeDur    *prometheus.HistogramVec // labels: kind
	PointsTotal   *prometheus.CounterVec   // labels: kind
	StoreDur      *prometheus.HistogramVec // labels: op
	StoreFailures *prometheus.CounterVec   // labels: op

	gatherer prometheus.Gatherer
}

// NewMetrics creates the metrics and registers them with reg. A nil reg uses a
// fresh registry, which keeps tests independent of the global default.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		ComputeDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "indicator_compute_duration_seconds",
			Help:    "Indicator series computation latency",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
		}, []string{"kind"}),
		PointsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indicator_points_computed_total",
			Help: "Total indicator values computed",
		}, []string{"kind"}),
		StoreDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "indicator_store_duration_seconds",
			Help:    "Indicator store round-trip latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		StoreFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indicator_store_failures_total",
			Help: "Indicator store round-trips that failed",
		}, []string{"op"}),
		gatherer: reg,
	}
	reg.MustRegister(m.ComputeDur, m.PointsTotal, m.StoreDur, m.StoreFailures)
	return m
}

// ObserveCompute records one computation of points values for kind.
func (m *Metrics) ObserveCompute(kind string, d time.Duration, points int) {
	if m == nil {
		return
	}
	m.ComputeDur.WithLabelValues(kind).Observe(d.Seconds())
	m.PointsTotal.WithLabelValues(kind).Add(float64(points))
}

// ObserveStore records one store round-trip.
func (m *Metrics) ObserveStore(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.StoreDur.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		m.StoreFailures.WithLabelValues(op).Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
