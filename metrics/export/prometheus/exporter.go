package prometheus

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/metrics/export/internaldefs"
)

// ContentType is the text exposition format version written by [PrometheusExporter.Handler].
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

type metricsSource interface {
	MetricsSnapshot() goIdentity.MetricsSnapshot
	AuditDropped() uint64
}

// PrometheusExporter renders engine metrics in the Prometheus text format.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter reads from engine on every scrape.
func NewPrometheusExporter(engine *goIdentity.Engine) *PrometheusExporter {
	if engine == nil {
		return &PrometheusExporter{}
	}
	return &PrometheusExporter{source: engine}
}

func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", ContentType)
		_, _ = io.WriteString(w, p.Render())
	})
}

// Render returns the current metrics, or "" when the engine records nothing.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}
	snap := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return ""
	}

	w := &textWriter{}
	for _, def := range internaldefs.CounterDefs {
		w.counter(def.Name, def.Help, snap.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		w.histogram(def.Name, def.Help, internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[def.ID])))
	}
	w.counter(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, dropped)
	return w.buf.String()
}

type textWriter struct {
	buf bytes.Buffer
}

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

func (w *textWriter) header(name, help, kind string) {
	fmt.Fprintf(&w.buf, "# HELP %s %s\n# TYPE %s %s\n", name, helpEscaper.Replace(help), name, kind)
}

func (w *textWriter) counter(name, help string, v uint64) {
	w.header(name, help, "counter")
	fmt.Fprintf(&w.buf, "%s %d\n", name, v)
}

func (w *textWriter) histogram(name, help string, cumulative []uint64) {
	w.header(name, help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		fmt.Fprintf(&w.buf, "%s_bucket{le=%q} %d\n", name, le, cumulative[i])
	}
	fmt.Fprintf(&w.buf, "%s_count %d\n", name, cumulative[len(cumulative)-1])
	// Only bucket counts are tracked, so the sum is not known.
	fmt.Fprintf(&w.buf, "%s_sum 0\n", name)
}
