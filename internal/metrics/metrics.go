// Package metrics exposes Prometheus counters for sync runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fredflow"

// Metrics holds all sync metrics on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	FetchTotal      *prometheus.CounterVec
	RowsUpserted    *prometheus.CounterVec
	RowsSkipped     *prometheus.CounterVec
	RowsFailed      *prometheus.CounterVec
	DestErrors      *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	LastRunUnixtime prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.FetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_total",
		Help:      "Series fetches by outcome.",
	}, []string{"outcome"}) // data, empty, failure, skipped

	m.RowsUpserted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rows_upserted_total",
		Help:      "Observations committed to a destination.",
	}, []string{"destination"})

	m.RowsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rows_skipped_total",
		Help:      "Observations whose merge affected no rows.",
	}, []string{"destination"})

	m.RowsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rows_failed_total",
		Help:      "Observations whose merge returned an error.",
	}, []string{"destination"})

	m.DestErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "destination_errors_total",
		Help:      "Series a destination could not be synced for.",
	}, []string{"destination"})

	m.RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of a full sync run.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 3600},
	})

	m.LastRunUnixtime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Completion time of the last sync run.",
	})

	m.registry.MustRegister(
		m.FetchTotal,
		m.RowsUpserted,
		m.RowsSkipped,
		m.RowsFailed,
		m.DestErrors,
		m.RunDuration,
		m.LastRunUnixtime,
	)
	return m
}

// Registry returns the registry all metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Fetch(outcome string) {
	if m == nil {
		return
	}
	m.FetchTotal.WithLabelValues(outcome).Inc()
}

// Rows records the row outcomes of one upsert call.
func (m *Metrics) Rows(dest string, upserted, skipped, failed int) {
	if m == nil {
		return
	}
	m.RowsUpserted.WithLabelValues(dest).Add(float64(upserted))
	m.RowsSkipped.WithLabelValues(dest).Add(float64(skipped))
	m.RowsFailed.WithLabelValues(dest).Add(float64(failed))
}

func (m *Metrics) DestinationError(dest string) {
	if m == nil {
		return
	}
	m.DestErrors.WithLabelValues(dest).Inc()
}

// RunFinished observes the run duration and stamps the completion time.
func (m *Metrics) RunFinished(d time.Duration, at time.Time) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(d.Seconds())
	m.LastRunUnixtime.Set(float64(at.Unix()))
}
