package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the counters the order workflow records. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	OrdersCreated       *prometheus.CounterVec
	PaymentLinkFailures prometheus.Counter
	WebhookEvents       *prometheus.CounterVec
	NotificationsFailed *prometheus.CounterVec
	StatusUpdates       *prometheus.CounterVec
	ReconciledOrders    *prometheus.CounterVec
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		OrdersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "orders",
			Name:      "created_total",
			Help:      "Orders persisted, by payment mode.",
		}, []string{"mode"}),
		PaymentLinkFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "orders",
			Name:      "payment_link_failures_total",
			Help:      "Orders rolled back because the gateway could not create a payment link.",
		}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Gateway callbacks by outcome.",
		}, []string{"outcome"}),
		NotificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "notify",
			Name:      "failures_total",
			Help:      "Notifications that could not be delivered, by kind.",
		}, []string{"kind"}),
		StatusUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "admin",
			Name:      "status_updates_total",
			Help:      "Operator status changes, by target status.",
		}, []string{"status"}),
		ReconciledOrders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "reconcile",
			Name:      "orders_total",
			Help:      "Orders fixed by the reconciliation sweep, by action.",
		}, []string{"action"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.OrdersCreated,
		m.PaymentLinkFailures,
		m.WebhookEvents,
		m.NotificationsFailed,
		m.StatusUpdates,
		m.ReconciledOrders,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) OrderCreated(mode string) {
	if m != nil {
		m.OrdersCreated.WithLabelValues(mode).Inc()
	}
}

func (m *Metrics) PaymentLinkFailed() {
	if m != nil {
		m.PaymentLinkFailures.Inc()
	}
}

func (m *Metrics) WebhookEvent(outcome string) {
	if m != nil {
		m.WebhookEvents.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) NotificationFailed(kind string) {
	if m != nil {
		m.NotificationsFailed.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) StatusUpdated(status string) {
	if m != nil {
		m.StatusUpdates.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) Reconciled(action string) {
	if m != nil {
		m.ReconciledOrders.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m != nil {
		m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
	}
}
