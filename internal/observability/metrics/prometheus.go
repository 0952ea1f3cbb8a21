package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics records inbound request counts and latency per route.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NotifierMetrics tracks the staff notification pipeline.
type NotifierMetrics struct {
	deliveries *prometheus.CounterVec
	duration   prometheus.Histogram
	queueDepth prometheus.Gauge
}

const (
	NotifyDelivered = "delivered"
	NotifyFailed    = "failed"
	NotifyDropped   = "dropped"
	NotifySkipped   = "skipped"
)

// NewHTTPMetrics registers the HTTP collectors on the default registry.
func NewHTTPMetrics() *HTTPMetrics {
	return NewHTTPMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func NewHTTPMetricsWithRegisterer(registerer prometheus.Registerer) *HTTPMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "repairdesk_http_requests_total",
		Help: "Counts HTTP requests by method, route and status.",
	}, []string{"method", "route", "status_code"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "repairdesk_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	return &HTTPMetrics{
		requests: registerCounterVec(registerer, requests),
		duration: registerHistogramVec(registerer, duration),
	}
}

// NewNotifierMetrics registers the notifier collectors on the default registry.
func NewNotifierMetrics() *NotifierMetrics {
	return NewNotifierMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func NewNotifierMetricsWithRegisterer(registerer prometheus.Registerer) *NotifierMetrics {
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "repairdesk_notifications_total",
		Help: "Staff notifications by outcome.",
	}, []string{"outcome"})

	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "repairdesk_notification_duration_seconds",
		Help:    "Round trip of a single notification delivery.",
		Buckets: prometheus.DefBuckets,
	})

	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "repairdesk_notification_queue_depth",
		Help: "Notifications waiting for a worker.",
	})

	return &NotifierMetrics{
		deliveries: registerCounterVec(registerer, deliveries),
		duration:   registerCollector(registerer, duration),
		queueDepth: registerCollector(registerer, queueDepth),
	}
}

// GinMiddleware records request metrics after the handler chain finishes.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := strings.TrimSpace(c.FullPath())
		if route == "" {
			route = "unknown"
		}
		method := c.Request.Method
		m.requests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

func (m *NotifierMetrics) RecordDelivery(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(outcome).Inc()
	if elapsed > 0 {
		m.duration.Observe(elapsed.Seconds())
	}
}

func (m *NotifierMetrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// Deliveries exposes the counter vector for assertions in tests.
func (m *NotifierMetrics) Deliveries() *prometheus.CounterVec {
	return m.deliveries
}

func registerCounterVec(registerer prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	return registerCollector(registerer, c)
}

func registerHistogramVec(registerer prometheus.Registerer, h *prometheus.HistogramVec) *prometheus.HistogramVec {
	return registerCollector(registerer, h)
}

// registerCollector reuses an already registered collector so repeated
// construction (tests, fx restarts) does not panic.
func registerCollector[T prometheus.Collector](registerer prometheus.Registerer, c T) T {
	if registerer == nil {
		return c
	}
	if err := registerer.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}
