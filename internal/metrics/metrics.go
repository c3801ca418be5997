// Package metrics exposes Prometheus collectors for ingestion, queries and
// forecasts.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/basin-data-api/internal/basin"
)

// Recorder holds the service collectors on a private registry. It
// implements basin.Recorder.
type Recorder struct {
	registry *prometheus.Registry

	yearsTotal        *prometheus.CounterVec
	rowsIngested      prometheus.Counter
	rowsSkipped       prometheus.Counter
	operationDuration *prometheus.HistogramVec
}

var _ basin.Recorder = (*Recorder)(nil)

// New creates a Recorder with Go runtime and process collectors registered.
func New() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Recorder{
		registry: registry,
		yearsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "basin_ingest_years_total",
			Help: "Years processed by ingestion, by outcome.",
		}, []string{"status"}),
		rowsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "basin_ingest_rows_total",
			Help: "Rows written by successful year ingestions.",
		}),
		rowsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "basin_rows_skipped_total",
			Help: "Stored rows dropped by read-path validation.",
		}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "basin_operation_duration_seconds",
			Help:    "Duration of ingest, query and forecast operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
	}

	registry.MustRegister(r.yearsTotal)
	registry.MustRegister(r.rowsIngested)
	registry.MustRegister(r.rowsSkipped)
	registry.MustRegister(r.operationDuration)

	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) YearProcessed(status basin.Status, rows int) {
	r.yearsTotal.WithLabelValues(string(status)).Inc()
	if status == basin.StatusSuccess {
		r.rowsIngested.Add(float64(rows))
	}
}

func (r *Recorder) RowsSkipped(n int) {
	r.rowsSkipped.Add(float64(n))
}

// ObserveOperation records the duration of operation since start. outcome
// is "error" when err is non-nil and "ok" otherwise.
func (r *Recorder) ObserveOperation(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.operationDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
}
