// Package metrics records ingestion run measurements in a Prometheus registry
// that can be exported to a node-exporter textfile after the run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sharing_ingest"

// Metrics holds the collectors for one process. Each instance owns its own
// registry, so tests can create as many as they like.
type Metrics struct {
	registry      *prometheus.Registry
	stageDuration *prometheus.HistogramVec
	rows          *prometheus.GaugeVec
	downloadBytes prometheus.Gauge
	runs          *prometheus.CounterVec
	lastSuccess   prometheus.Gauge
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each ingestion stage.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"stage"}),
		rows: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rows",
			Help:      "Rows written by the last successful split.",
		}, []string{"subset"}),
		downloadBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "download_bytes",
			Help:      "Size of the last downloaded archive.",
		}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Ingestion runs by outcome.",
		}, []string{"status"}),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveStage records how long stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// SetDownloadBytes records the archive size.
func (m *Metrics) SetDownloadBytes(n int64) {
	m.downloadBytes.Set(float64(n))
}

// RunSucceeded records a successful run and its row counts.
func (m *Metrics) RunSucceeded(trainRows, testRows int, at time.Time) {
	m.runs.WithLabelValues("succeeded").Inc()
	m.rows.WithLabelValues("train").Set(float64(trainRows))
	m.rows.WithLabelValues("test").Set(float64(testRows))
	m.lastSuccess.Set(float64(at.Unix()))
}

// RunFailed records a failed run.
func (m *Metrics) RunFailed() {
	m.runs.WithLabelValues("failed").Inc()
}

// WriteTextfile writes the registry in the text exposition format. The file
// is written to a temporary name and renamed so collectors never read a
// partial file.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
