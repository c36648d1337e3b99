// Package metrics exposes report run metrics to prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder collects run metrics on its own registry.
type Recorder struct {
	registry      *prometheus.Registry
	runs          *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	rowsPublished *prometheus.GaugeVec
	lastSuccess   *prometheus.GaugeVec
}

// NewRecorder registers the covid19 collectors plus the Go and process
// collectors on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covid19",
			Name:      "runs_total",
			Help:      "Report runs by dataset and final status.",
		}, []string{"dataset", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "covid19",
			Name:      "run_duration_seconds",
			Help:      "Wall time of report runs.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"dataset"}),
		rowsPublished: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "covid19",
			Name:      "rows_published",
			Help:      "Rows written by the last successful run per output table.",
		}, []string{"dataset", "table"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "covid19",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}, []string{"dataset"}),
	}
	r.registry.MustRegister(
		r.runs, r.duration, r.rowsPublished, r.lastSuccess,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveRun records one finished run.
func (r *Recorder) ObserveRun(dataset, status string, took time.Duration) {
	r.runs.WithLabelValues(dataset, status).Inc()
	r.duration.WithLabelValues(dataset).Observe(took.Seconds())
	if status == "success" {
		r.lastSuccess.WithLabelValues(dataset).SetToCurrentTime()
	}
}

// SetRowsPublished records the row count of one output table.
func (r *Recorder) SetRowsPublished(dataset, table string, rows int) {
	r.rowsPublished.WithLabelValues(dataset, table).Set(float64(rows))
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
