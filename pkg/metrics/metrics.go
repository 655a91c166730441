// Package metrics exposes Prometheus metrics for pipeline runs. All
// metrics are registered automatically at package init and labeled by
// pipeline name so several configured pipelines share one registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsExtracted counts raw records fetched from the search API.
	RecordsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vegasetl_records_extracted_total",
			Help: "Total raw records fetched from the listing source",
		},
		[]string{"pipeline"},
	)

	// RecordsTransformed counts records that survived normalization.
	RecordsTransformed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vegasetl_records_transformed_total",
			Help: "Total records emitted by the transform stage",
		},
		[]string{"pipeline"},
	)

	// RecordsDropped counts records removed by the quality filter.
	RecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vegasetl_records_dropped_total",
			Help: "Total records dropped for missing property id or price",
		},
		[]string{"pipeline"},
	)

	// RecordsLoaded counts rows inserted into the destination table.
	RecordsLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vegasetl_records_loaded_total",
			Help: "Total rows inserted into the destination table",
		},
		[]string{"pipeline"},
	)

	// DuplicatesSkipped counts rows rejected by the identity constraint.
	DuplicatesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vegasetl_duplicates_skipped_total",
			Help: "Total rows skipped because their identity key already existed",
		},
		[]string{"pipeline"},
	)

	// RunDuration records the wall-clock duration of the last run.
	RunDuration = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vegasetl_run_duration_seconds",
			Help: "Duration of the most recent pipeline run in seconds",
		},
		[]string{"pipeline"},
	)

	// RunsTotal counts completed runs by outcome.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vegasetl_runs_total",
			Help: "Total pipeline runs by outcome",
		},
		[]string{"pipeline", "status"},
	)

	// DestinationRows records the destination row count after a load.
	DestinationRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vegasetl_destination_rows",
			Help: "Row count of the destination table after the last load",
		},
		[]string{"pipeline"},
	)
)

// Recorder binds the shared metrics to one pipeline's label value.
type Recorder struct {
	pipeline string
	start    time.Time
}

// NewRecorder starts a run-scoped recorder for the named pipeline.
func NewRecorder(pipeline string) *Recorder {
	return &Recorder{pipeline: pipeline, start: time.Now()}
}

// ObserveExtract records the raw record count.
func (r *Recorder) ObserveExtract(records int) {
	RecordsExtracted.WithLabelValues(r.pipeline).Add(float64(records))
}

// ObserveTransform records the transform stage outcome.
func (r *Recorder) ObserveTransform(transformed, dropped int) {
	RecordsTransformed.WithLabelValues(r.pipeline).Add(float64(transformed))
	RecordsDropped.WithLabelValues(r.pipeline).Add(float64(dropped))
}

// ObserveLoad records the load stage outcome.
func (r *Recorder) ObserveLoad(inserted, duplicates int, totalRows int64) {
	RecordsLoaded.WithLabelValues(r.pipeline).Add(float64(inserted))
	DuplicatesSkipped.WithLabelValues(r.pipeline).Add(float64(duplicates))
	DestinationRows.WithLabelValues(r.pipeline).Set(float64(totalRows))
}

// Finish records the run duration and outcome. It returns the elapsed
// duration so callers can reuse it in run metadata.
func (r *Recorder) Finish(succeeded bool) time.Duration {
	elapsed := time.Since(r.start)
	RunDuration.WithLabelValues(r.pipeline).Set(elapsed.Seconds())
	status := "success"
	if !succeeded {
		status = "failure"
	}
	RunsTotal.WithLabelValues(r.pipeline, status).Inc()
	return elapsed
}
