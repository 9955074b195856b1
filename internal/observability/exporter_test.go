package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrometheusExporter_Format(t *testing.T) {
	r := NewRegistry()
	r.NewCounter("sling_trades_total", "Swap executions started").Add(12)
	r.NewGauge("sling_active_orders", "Contracts with active orders").Set(3)
	h := r.NewHistogram("sling_trade_latency_ms", "Swap latency", []float64{100, 1000})
	h.Observe(40)
	h.Observe(400)
	h.Observe(4000)

	out := NewPrometheusExporter(r).Format()

	assert.Contains(t, out, "# TYPE sling_trades_total counter\nsling_trades_total 12\n")
	assert.Contains(t, out, "# TYPE sling_active_orders gauge\nsling_active_orders 3\n")
	assert.Contains(t, out, `sling_trade_latency_ms_bucket{le="100"} 1`)
	assert.Contains(t, out, `sling_trade_latency_ms_bucket{le="1000"} 2`)
	assert.Contains(t, out, `sling_trade_latency_ms_bucket{le="+Inf"} 3`)
	assert.Contains(t, out, "sling_trade_latency_ms_sum 4440")
	assert.Contains(t, out, "sling_trade_latency_ms_count 3")

	// Metrics are listed by name.
	assert.Less(t, strings.Index(out, "sling_active_orders"), strings.Index(out, "sling_trade_latency_ms"))
	assert.Less(t, strings.Index(out, "sling_trade_latency_ms"), strings.Index(out, "sling_trades_total"))
}

func TestPrometheusExporter_EngineMetrics(t *testing.T) {
	r := SlingMetrics()
	r.GetCounter(MetricWebhookRejected).Inc()

	rec := httptest.NewRecorder()
	NewPrometheusExporter(r).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics/prometheus", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	body := rec.Body.String()
	assert.Contains(t, body, MetricWebhookRejected+" 1\n")
	assert.Equal(t, 15, strings.Count(body, "# HELP "))
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "0.25", formatFloat(0.25))
	assert.Equal(t, "1e+06", formatFloat(1e6))
}
