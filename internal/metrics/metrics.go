// Package metrics holds the Prometheus collectors shared by the ordering and
// kitchen services.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "smartdine"

// Metrics is a set of collectors registered on their own registry
type Metrics struct {
	registry *prometheus.Registry

	OrdersSubmitted prometheus.Counter
	SubmitFailures  prometheus.Counter
	CartRejections  *prometheus.CounterVec
	StatusAdvances  *prometheus.CounterVec
	ActiveSessions  prometheus.Gauge
}

// New creates and registers all collectors, plus the Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		OrdersSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_submitted_total",
			Help:      "Orders written to the document store.",
		}),
		SubmitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_submit_failures_total",
			Help:      "Checkouts that failed to write the order record.",
		}),
		CartRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_rejections_total",
			Help:      "Rejected cart and checkout operations by reason.",
		}, []string{"reason"}),
		StatusAdvances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_advances_total",
			Help:      "Order status writes by target status.",
		}, []string{"to"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Open diner sessions.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.OrdersSubmitted,
		m.SubmitFailures,
		m.CartRejections,
		m.StatusAdvances,
		m.ActiveSessions,
	)
	return m
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
