package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("outcome", "accepted"),
		attribute.String("phone", "+79990000000"),
		attribute.String("reason", ""),
	)
	if len(attrs) != 1 {
		t.Fatalf("expected 1 attribute, got %d", len(attrs))
	}
	if attrs[0].Key != "outcome" {
		t.Fatalf("expected outcome to be retained")
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordSubmission(t.Context(), OutcomeAccepted, "")
	m.RecordExport(t.Context(), OutcomeCompleted, 3)

	var n *NotifierMetrics
	n.RecordDelivery(NotifyFailed, time.Second)
	n.SetQueueDepth(2)
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m := NewHTTPMetricsWithRegisterer(registry)

	router := gin.New()
	router.Use(GinMiddleware(m))
	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/healthz", "200")))
}

func TestNotifierMetricsReuseRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := NewNotifierMetricsWithRegisterer(registry)
	second := NewNotifierMetricsWithRegisterer(registry)

	first.RecordDelivery(NotifyDelivered, 10*time.Millisecond)
	second.RecordDelivery(NotifyDelivered, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(first.Deliveries().WithLabelValues(NotifyDelivered)))
}
