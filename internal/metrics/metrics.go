// Package metrics holds the Prometheus collectors shared by the analysis
// pipeline and the watch server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics definitions
var (
	FilesAnalyzed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "testlens_files_analyzed_total",
		Help: "Total number of Python files analyzed, by mode.",
	}, []string{"mode"})

	ParseFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "testlens_parse_failures_total",
		Help: "Total number of files that failed to parse, by mode.",
	}, []string{"mode"})

	MaskedImportFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "testlens_masked_import_failures_total",
		Help: "Total number of import scan failures treated as empty import sets.",
	})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "testlens_analysis_seconds",
		Help:    "Time spent on analysis tasks.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})

	ImpactedTests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "testlens_impacted_tests",
		Help: "Number of tests selected by the most recent impact computation.",
	})

	SnapshotsCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "testlens_snapshots_committed_total",
		Help: "Total number of workspace snapshots written to the store.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "testlens_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)

// Mode labels for FilesAnalyzed and ParseFailures.
const (
	ModeDefinitions  = "definitions"
	ModeProfile      = "profile"
	ModeAssociations = "associations"
	ModeHash         = "hash"
)

// ObserveSince records the time elapsed since start under task.
func ObserveSince(task string, start time.Time) {
	AnalysisDuration.WithLabelValues(task).Observe(time.Since(start).Seconds())
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
