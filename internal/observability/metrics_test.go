package observability

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounter(t *testing.T) {
	r := NewRegistry()
	c := r.NewCounter("orders_total", "Orders")
	assert.Zero(t, c.Value())

	c.Inc()
	c.Add(4)
	assert.Equal(t, 5.0, c.Value())
}

func TestCounter_Concurrent(t *testing.T) {
	c := NewRegistry().NewCounter("hits_total", "Hits")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Inc()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 5000.0, c.Value())
}

func TestGauge(t *testing.T) {
	g := NewRegistry().NewGauge("open_orders", "Open orders")
	assert.Zero(t, g.Value())

	g.Set(12)
	g.Set(-0.5)
	assert.Equal(t, -0.5, g.Value())
}

func TestHistogram_CumulativeBuckets(t *testing.T) {
	h := NewRegistry().NewHistogram("latency_ms", "Latency", []float64{100, 10, 1000})
	for _, v := range []float64{5, 10, 50, 500, 5000} {
		h.Observe(v)
	}

	s := h.Snapshot()
	assert.Equal(t, []float64{10, 100, 1000}, s.Bounds, "bounds are sorted")
	assert.Equal(t, []uint64{2, 3, 4}, s.Cumulative, "a value on a bound counts in that bucket")
	assert.Equal(t, uint64(5), s.Count)
	assert.Equal(t, 5565.0, s.Sum)
}

func TestRegistry_ReRegisterReturnsExisting(t *testing.T) {
	r := SlingMetrics()
	c := r.NewCounter(MetricStopLossTriggered, "dup")
	c.Inc()
	assert.Same(t, c, r.GetCounter(MetricStopLossTriggered))
	assert.Equal(t, 1.0, r.GetCounter(MetricStopLossTriggered).Value())
	assert.Equal(t, 15, r.Len())
}

func TestRegistry_KindMismatch(t *testing.T) {
	r := SlingMetrics()
	assert.Nil(t, r.GetGauge(MetricTradesTotal))
	assert.Nil(t, r.GetCounter("missing"))
	assert.Panics(t, func() { r.NewGauge(MetricTradesTotal, "wrong kind") })
}

func TestSlingMetrics_Registered(t *testing.T) {
	r := SlingMetrics()

	for _, name := range []string{
		MetricTradesTotal, MetricTradesConfirmed, MetricTradesUnconfirmed, MetricTradesFailed,
		MetricSubmitAttemptFailures, MetricSubmitBlockhashExpired,
		MetricStopLossTriggered, MetricStopLossSkipped,
		MetricLaunchEvents, MetricLaunchBuys, MetricWebhookRejected, MetricPricePoints,
	} {
		require.NotNilf(t, r.GetCounter(name), "counter %s", name)
	}
	require.NotNil(t, r.GetGauge(MetricActiveOrders))
	require.NotNil(t, r.GetGauge(MetricTrackedLaunches))
	require.NotNil(t, r.GetHistogram(MetricTradeLatency))
	assert.Equal(t, 15, r.Len())
}

func TestRegistry_Snapshot(t *testing.T) {
	r := SlingMetrics()
	r.GetCounter(MetricLaunchEvents).Add(3)
	r.GetGauge(MetricActiveOrders).Set(7)
	r.GetHistogram(MetricTradeLatency).Observe(120)
	r.GetHistogram(MetricTradeLatency).Observe(80)

	snap := r.Snapshot()
	assert.Len(t, snap, 15)
	assert.Equal(t, 3.0, snap[MetricLaunchEvents])
	assert.Equal(t, 7.0, snap[MetricActiveOrders])
	assert.Equal(t, 2.0, snap[MetricTradeLatency], "histograms report their count")
	assert.Zero(t, snap[MetricTradesFailed])
}
