// Package observability holds the engine's in-process metrics and health
// probes, and renders them for the HTTP surface.
package observability

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
)

// Kind is the Prometheus type of a metric.
type Kind string

const (
	KindCounter   Kind = "counter"
	KindGauge     Kind = "gauge"
	KindHistogram Kind = "histogram"
)

// Metric names shared by the engine components.
const (
	MetricTradesTotal            = "sling_trades_total"
	MetricTradesConfirmed        = "sling_trades_confirmed_total"
	MetricTradesUnconfirmed      = "sling_trades_unconfirmed_total"
	MetricTradesFailed           = "sling_trades_failed_total"
	MetricSubmitAttemptFailures  = "sling_submit_attempt_failures_total"
	MetricSubmitBlockhashExpired = "sling_submit_blockhash_expired_total"
	MetricStopLossTriggered      = "sling_stoploss_triggered_total"
	MetricStopLossSkipped        = "sling_stoploss_skipped_total"
	MetricLaunchEvents           = "sling_launch_events_total"
	MetricLaunchBuys             = "sling_launch_buys_total"
	MetricWebhookRejected        = "sling_webhook_rejected_total"
	MetricPricePoints            = "sling_price_points_total"
	MetricActiveOrders           = "sling_active_orders"
	MetricTrackedLaunches        = "sling_tracked_launches"
	MetricTradeLatency           = "sling_trade_latency_ms"
)

// TradeLatencyBuckets bound swap latency in milliseconds. Confirmation
// dominates, so the upper buckets reach the confirm timeout.
var TradeLatencyBuckets = []float64{250, 500, 1000, 2500, 5000, 10000, 30000, 60000}

// ---------------------------------------------------------------------------
// Instruments
// ---------------------------------------------------------------------------

// Counter counts events.
type Counter struct {
	n atomic.Uint64
}

func (c *Counter) Inc() { c.n.Add(1) }

func (c *Counter) Add(n uint64) { c.n.Add(n) }

func (c *Counter) Value() float64 { return float64(c.n.Load()) }

// Gauge holds the last value set.
type Gauge struct {
	bits atomic.Uint64
}

func (g *Gauge) Set(v float64) { g.bits.Store(math.Float64bits(v)) }

func (g *Gauge) Value() float64 { return math.Float64frombits(g.bits.Load()) }

// Histogram counts observations per upper bound. Bucket counts are
// cumulative, as Prometheus expects them.
type Histogram struct {
	mu     sync.Mutex
	bounds []float64
	counts []uint64
	sum    float64
	count  uint64
}

func newHistogram(bounds []float64) *Histogram {
	b := append([]float64(nil), bounds...)
	sort.Float64s(b)
	return &Histogram{bounds: b, counts: make([]uint64, len(b))}
}

func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.count++
	for i := len(h.bounds) - 1; i >= 0 && v <= h.bounds[i]; i-- {
		h.counts[i]++
	}
}

// HistogramSnapshot is a consistent copy of a histogram.
type HistogramSnapshot struct {
	Bounds     []float64
	Cumulative []uint64
	Sum        float64
	Count      uint64
}

func (h *Histogram) Snapshot() HistogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HistogramSnapshot{
		Bounds:     append([]float64(nil), h.bounds...),
		Cumulative: append([]uint64(nil), h.counts...),
		Sum:        h.sum,
		Count:      h.count,
	}
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

type metric struct {
	name string
	help string
	kind Kind

	counter   *Counter
	gauge     *Gauge
	histogram *Histogram
}

// value is what the JSON snapshot reports. Histograms report their count.
func (m *metric) value() float64 {
	switch m.kind {
	case KindCounter:
		return m.counter.Value()
	case KindGauge:
		return m.gauge.Value()
	default:
		return float64(m.histogram.Snapshot().Count)
	}
}

// Registry is a named set of metrics, safe for concurrent use. Registering
// a name twice returns the first instrument.
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]*metric
}

func NewRegistry() *Registry {
	return &Registry{metrics: make(map[string]*metric)}
}

func (r *Registry) register(name, help string, kind Kind, build func(*metric)) *metric {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.metrics[name]; ok {
		if m.kind != kind {
			panic(fmt.Sprintf("observability: %s registered as %s, requested as %s", name, m.kind, kind))
		}
		return m
	}
	m := &metric{name: name, help: help, kind: kind}
	build(m)
	r.metrics[name] = m
	return m
}

func (r *Registry) NewCounter(name, help string) *Counter {
	return r.register(name, help, KindCounter, func(m *metric) { m.counter = &Counter{} }).counter
}

func (r *Registry) NewGauge(name, help string) *Gauge {
	return r.register(name, help, KindGauge, func(m *metric) { m.gauge = &Gauge{} }).gauge
}

func (r *Registry) NewHistogram(name, help string, bounds []float64) *Histogram {
	return r.register(name, help, KindHistogram, func(m *metric) { m.histogram = newHistogram(bounds) }).histogram
}

func (r *Registry) lookup(name string, kind Kind) *metric {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.metrics[name]; ok && m.kind == kind {
		return m
	}
	return nil
}

// GetCounter returns the named counter, or nil.
func (r *Registry) GetCounter(name string) *Counter {
	if m := r.lookup(name, KindCounter); m != nil {
		return m.counter
	}
	return nil
}

// GetGauge returns the named gauge, or nil.
func (r *Registry) GetGauge(name string) *Gauge {
	if m := r.lookup(name, KindGauge); m != nil {
		return m.gauge
	}
	return nil
}

// GetHistogram returns the named histogram, or nil.
func (r *Registry) GetHistogram(name string) *Histogram {
	if m := r.lookup(name, KindHistogram); m != nil {
		return m.histogram
	}
	return nil
}

// sorted returns every metric ordered by name.
func (r *Registry) sorted() []*metric {
	r.mu.RLock()
	out := make([]*metric, 0, len(r.metrics))
	for _, m := range r.metrics {
		out = append(out, m)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Len counts registered metrics.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.metrics)
}

// Snapshot returns metric values keyed by name. Histograms report their count.
func (r *Registry) Snapshot() map[string]float64 {
	ms := r.sorted()
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.name] = m.value()
	}
	return out
}

// SlingMetrics creates a registry with every engine metric registered, so
// exports list them before their first event.
func SlingMetrics() *Registry {
	r := NewRegistry()

	r.NewCounter(MetricTradesTotal, "Swap executions started")
	r.NewCounter(MetricTradesConfirmed, "Swaps finalized on chain")
	r.NewCounter(MetricTradesUnconfirmed, "Swaps submitted but not confirmed in time")
	r.NewCounter(MetricTradesFailed, "Swaps that failed")
	r.NewCounter(MetricSubmitAttemptFailures, "Failed sendTransaction attempts")
	r.NewCounter(MetricSubmitBlockhashExpired, "Attempts rejected for an expired blockhash")
	r.NewCounter(MetricStopLossTriggered, "Stop-loss orders that reached a sell")
	r.NewCounter(MetricStopLossSkipped, "Stop-loss evaluations skipped")
	r.NewCounter(MetricLaunchEvents, "Pool launch events handled")
	r.NewCounter(MetricLaunchBuys, "Launch buys executed")
	r.NewCounter(MetricWebhookRejected, "Webhook requests rejected by key check")
	r.NewCounter(MetricPricePoints, "Price points stored")

	r.NewGauge(MetricActiveOrders, "Contracts with active protective orders")
	r.NewGauge(MetricTrackedLaunches, "Tracked launches not yet rugged")

	r.NewHistogram(MetricTradeLatency, "Swap execution latency in milliseconds", TradeLatencyBuckets)
	return r
}
