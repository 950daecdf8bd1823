package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the application collectors. A nil *Metrics, or one built
// with a nil registerer, records nothing.
type Metrics struct {
	httpDuration  *prometheus.HistogramVec
	ordersCreated *prometheus.CounterVec
	paymentEvents *prometheus.CounterVec
	stockBatches  *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// New registers the application metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}

	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "grocer_http_request_duration_seconds",
		Help:    "Duration of HTTP requests by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	ordersCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grocer_orders_created_total",
		Help: "Customer orders created, by initial state.",
	}, []string{"state"})
	paymentEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grocer_payment_events_total",
		Help: "Payment webhook events by type and outcome.",
	}, []string{"type", "outcome"})
	stockBatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grocer_stock_batches_total",
		Help: "Inventory ledger batches by direction and outcome.",
	}, []string{"direction", "outcome"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grocer_notifications_total",
		Help: "Email notifications by outcome.",
	}, []string{"outcome"})

	reg.MustRegister(httpDuration, ordersCreated, paymentEvents, stockBatches, notifications)

	return &Metrics{
		httpDuration:  httpDuration,
		ordersCreated: ordersCreated,
		paymentEvents: paymentEvents,
		stockBatches:  stockBatches,
		notifications: notifications,
	}
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil || m.httpDuration == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, normalizeLabel(route), strconv.Itoa(status)).Observe(d.Seconds())
}

// OrderCreated counts a new order in its initial state.
func (m *Metrics) OrderCreated(state string) {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.WithLabelValues(normalizeLabel(state)).Inc()
}

// PaymentEvent counts a webhook event outcome such as applied, skipped or failed.
func (m *Metrics) PaymentEvent(eventType, outcome string) {
	if m == nil || m.paymentEvents == nil {
		return
	}
	m.paymentEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// StockBatch counts a ledger batch outcome.
func (m *Metrics) StockBatch(direction, outcome string) {
	if m == nil || m.stockBatches == nil {
		return
	}
	m.stockBatches.WithLabelValues(normalizeLabel(direction), normalizeLabel(outcome)).Inc()
}

// Notification counts an email delivery outcome.
func (m *Metrics) Notification(outcome string) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
