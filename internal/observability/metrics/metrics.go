// Package metrics exposes Prometheus instruments for the HTTP surface and
// the invoicing workflow.
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the application-level instruments.
type Metrics struct {
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	paymentIntents  *prometheus.CounterVec
	lifecycleEvents *prometheus.CounterVec
	statusChanges   *prometheus.CounterVec
}

// New registers the instruments on the given registerer.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoray_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "invoray_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		paymentIntents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoray_payment_intents_total",
			Help: "Payment intent attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		lifecycleEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoray_lifecycle_events_total",
			Help: "Emitted invoice lifecycle events by type.",
		}, []string{"type"}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoray_invoice_status_changes_total",
			Help: "Invoice status updates by target status.",
		}, []string{"status"}),
	}

	for _, c := range []prometheus.Collector{
		m.httpRequests, m.httpDuration, m.paymentIntents, m.lifecycleEvents, m.statusChanges,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// RecordPaymentIntent counts a payment-intent attempt.
func (m *Metrics) RecordPaymentIntent(provider, outcome string) {
	if m == nil {
		return
	}
	m.paymentIntents.WithLabelValues(strings.ToLower(provider), outcome).Inc()
}

// RecordLifecycleEvent counts an emitted lifecycle event.
func (m *Metrics) RecordLifecycleEvent(eventType string) {
	if m == nil {
		return
	}
	m.lifecycleEvents.WithLabelValues(eventType).Inc()
}

// RecordStatusChange counts an applied invoice status update.
func (m *Metrics) RecordStatusChange(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}

// GinMiddleware records request counts and latency per route.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
