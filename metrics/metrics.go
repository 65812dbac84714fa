package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for an enrichment run.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry        *prometheus.Registry
	RowsTotal       *prometheus.CounterVec
	FetchDuration   prometheus.Histogram
	FieldsExtracted prometheus.Histogram
	ErrorsTotal     *prometheus.CounterVec
	Columns         prometheus.Gauge
	Diagnostics     *prometheus.CounterVec
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	rows := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirscrape_rows_total",
			Help: "Input rows processed, by final state.",
		},
		[]string{"state"},
	)
	fetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dirscrape_fetch_duration_seconds",
			Help:    "Duration of one full page fetch cycle.",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60},
		},
	)
	fields := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dirscrape_fields_extracted",
			Help:    "Number of fields extracted per page.",
			Buckets: prometheus.LinearBuckets(0, 2, 10),
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirscrape_errors_total",
			Help: "Row failures by error code.",
		},
		[]string{"code"},
	)
	columns := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dirscrape_columns",
			Help: "Current number of columns in the output table.",
		},
	)
	diagnostics := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirscrape_diagnostics_total",
			Help: "Diagnostic artifacts, by result (written, duplicate, failed).",
		},
		[]string{"result"},
	)

	registry.MustRegister(rows, fetchDuration, fields, errorsTotal, columns, diagnostics)

	return &Metrics{
		Registry:        registry,
		RowsTotal:       rows,
		FetchDuration:   fetchDuration,
		FieldsExtracted: fields,
		ErrorsTotal:     errorsTotal,
		Columns:         columns,
		Diagnostics:     diagnostics,
	}
}

// IncRow counts a row that finished in state.
func (m *Metrics) IncRow(state string) {
	if m == nil {
		return
	}
	m.RowsTotal.WithLabelValues(state).Inc()
}

// ObserveFetch records a fetch cycle duration.
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

// ObserveFields records how many fields one page produced.
func (m *Metrics) ObserveFields(n int) {
	if m == nil {
		return
	}
	m.FieldsExtracted.Observe(float64(n))
}

// IncError counts a row failure by error code.
func (m *Metrics) IncError(code string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(code).Inc()
}

// SetColumns records the current column count.
func (m *Metrics) SetColumns(n int) {
	if m == nil {
		return
	}
	m.Columns.Set(float64(n))
}

// IncDiagnostic counts a diagnostic outcome.
func (m *Metrics) IncDiagnostic(result string) {
	if m == nil {
		return
	}
	m.Diagnostics.WithLabelValues(result).Inc()
}
