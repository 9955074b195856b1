package observability

import (
	"bufio"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
)

// PrometheusExporter serves a registry in the Prometheus text format.
type PrometheusExporter struct {
	registry *Registry
}

func NewPrometheusExporter(registry *Registry) *PrometheusExporter {
	return &PrometheusExporter{registry: registry}
}

func (e *PrometheusExporter) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	bw := bufio.NewWriter(w)
	e.write(bw)
	_ = bw.Flush()
}

// Format renders every metric, ordered by name.
func (e *PrometheusExporter) Format() string {
	var b strings.Builder
	e.write(&b)
	return b.String()
}

func (e *PrometheusExporter) write(w io.StringWriter) {
	for _, m := range e.registry.sorted() {
		w.WriteString("# HELP " + m.name + " " + m.help + "\n")
		w.WriteString("# TYPE " + m.name + " " + string(m.kind) + "\n")
		switch m.kind {
		case KindHistogram:
			s := m.histogram.Snapshot()
			for i, bound := range s.Bounds {
				w.WriteString(m.name + `_bucket{le="` + formatFloat(bound) + `"} ` + strconv.FormatUint(s.Cumulative[i], 10) + "\n")
			}
			w.WriteString(m.name + `_bucket{le="+Inf"} ` + strconv.FormatUint(s.Count, 10) + "\n")
			w.WriteString(m.name + "_sum " + formatFloat(s.Sum) + "\n")
			w.WriteString(m.name + "_count " + strconv.FormatUint(s.Count, 10) + "\n")
		default:
			w.WriteString(m.name + " " + formatFloat(m.value()) + "\n")
		}
	}
}

// formatFloat renders v the way Prometheus parses it.
func formatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	case math.IsNaN(v):
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
