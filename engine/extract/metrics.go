package extract

import (
	"time"

	"github.com/Sheetlar/arxml/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts extraction outcomes. A nil *Metrics records nothing.
type Metrics struct {
	systems     *prometheus.CounterVec
	signals     prometheus.Counter
	skipped     *prometheus.CounterVec
	frames      prometheus.Counter
	diagnostics *prometheus.CounterVec
	duration    prometheus.Observer
}

// NewMetrics registers the extraction metrics on reg.
func NewMetrics(reg *metrics.Registry) *Metrics {
	return &Metrics{
		systems:     reg.Counter("arxml_systems_extracted_total", "Systems extracted, by result", "result"),
		signals:     reg.Counter("arxml_signals_extracted_total", "Signals extracted").WithLabelValues(),
		skipped:     reg.Counter("arxml_signals_skipped_total", "Signals skipped, by reason", "reason"),
		frames:      reg.Counter("arxml_frames_extracted_total", "CAN frames extracted").WithLabelValues(),
		diagnostics: reg.Counter("arxml_diagnostics_total", "Extraction diagnostics, by level", "level"),
		duration:    reg.Histogram("arxml_extraction_duration_seconds", "Per-system extraction time", nil).WithLabelValues(),
	}
}

func (m *Metrics) system(err error, start time.Time) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.systems.WithLabelValues(result).Inc()
	m.duration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) signal() {
	if m != nil {
		m.signals.Inc()
	}
}

func (m *Metrics) skip(reason string) {
	if m != nil {
		m.skipped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) frame() {
	if m != nil {
		m.frames.Inc()
	}
}

func (m *Metrics) diagnostic(d Diagnostic) {
	if m != nil {
		m.diagnostics.WithLabelValues(d.Level.String()).Inc()
	}
}
