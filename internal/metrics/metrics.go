package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Retrieval metrics
	DatasetsRetrieved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_datasets_retrieved_total",
			Help: "Total number of datasets retrieved successfully",
		},
		[]string{"dataset"},
	)

	RetrievalFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_retrieval_failures_total",
			Help: "Total number of dataset retrievals that did not succeed",
		},
		[]string{"dataset", "reason"},
	)

	RowsLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_rows_loaded_total",
			Help: "Total rows decoded from retrieved datasets",
		},
		[]string{"dataset"},
	)

	RetrievalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reconcile_retrieval_duration_seconds",
			Help:    "Duration of dataset retrieval in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"dataset"},
	)

	// Normalization metrics
	NormalizationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_normalization_errors_total",
			Help: "Total number of aborted date normalizations",
		},
		[]string{"column"},
	)

	// Correlation metrics
	CorrelatedRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_correlated_rows_total",
			Help: "Total intake rows emitted by the correlator, by match result",
		},
		[]string{"result"},
	)

	DroppedOutcomes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_dropped_outcomes_total",
			Help: "Total outcome rows left unpaired after their entity's intake rows were exhausted",
		},
	)

	CorrelationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reconcile_correlation_duration_seconds",
			Help:    "Duration of a correlation pass in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Pipeline metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"status"},
	)
)

// WriteTextfile dumps the default registry in the node_exporter textfile format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
