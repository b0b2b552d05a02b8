package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ceilometer_etl"

// File outcomes.
const (
	OutcomeLoaded = "loaded"
	OutcomeEmpty  = "empty"
	OutcomeFailed = "failed"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	FilesProcessed     *prometheus.CounterVec // labels: outcome={loaded,empty,failed}
	RecordsDecoded     *prometheus.CounterVec // labels: dialect
	RecordsDropped     *prometheus.CounterVec // labels: reason
	RecordsLoaded      prometheus.Counter
	FileDecodeDuration prometheus.Histogram
	PipelineRunning    prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		FilesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Input files processed by outcome.",
		}, []string{"outcome"}),
		RecordsDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_decoded_total",
			Help:      "Records decoded by device dialect.",
		}, []string{"dialect"}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Records abandoned during decoding by reason.",
		}, []string{"reason"}),
		RecordsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_loaded_total",
			Help:      "Records written by all loaders.",
		}),
		FileDecodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "file_decode_duration_seconds",
			Help:      "Duration of decoding and loading one input file.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates pipeline metrics and registers them with reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(
		m.FilesProcessed,
		m.RecordsDecoded,
		m.RecordsDropped,
		m.RecordsLoaded,
		m.FileDecodeDuration,
		m.PipelineRunning,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
