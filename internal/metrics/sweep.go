package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Sweep subsystem metrics
var (
	// SweepDuration tracks how long a sweep of one root takes
	SweepDuration prometheus.Histogram

	// FilesDeletedTotal counts suffix-matched files removed
	FilesDeletedTotal prometheus.Counter

	// DirsDeletedTotal counts directories removed because they were empty
	DirsDeletedTotal prometheus.Counter

	// BytesFreedTotal tracks bytes of deleted files
	BytesFreedTotal prometheus.Counter

	// SweepErrorsTotal counts failed deletions and unreadable directories
	SweepErrorsTotal prometheus.Counter

	// SweepSkippedTotal counts targets refused by the safety guard
	SweepSkippedTotal prometheus.Counter

	// SweepLastRunTimestamp records Unix timestamp of the last sweep
	SweepLastRunTimestamp prometheus.Gauge

	// RootFilesDeletedTotal counts deleted files per sweep root
	RootFilesDeletedTotal *prometheus.CounterVec

	// RootFreeBytes is free space on the filesystem of each root after a sweep
	RootFreeBytes *prometheus.GaugeVec
)

func initSweepMetrics() {
	SweepDuration = NewDurationHistogram(
		"myutils_sweep_duration_seconds",
		"Duration of a sweep of one root in seconds.",
	)
	FilesDeletedTotal = NewCounter(
		"myutils_sweep_files_deleted_total",
		"Total number of suffix-matched files deleted.",
	)
	DirsDeletedTotal = NewCounter(
		"myutils_sweep_dirs_deleted_total",
		"Total number of empty directories removed.",
	)
	BytesFreedTotal = NewCounter(
		"myutils_sweep_bytes_freed_total",
		"Total bytes of deleted files.",
	)
	SweepErrorsTotal = NewCounter(
		"myutils_sweep_errors_total",
		"Total number of failed deletions or unreadable directories.",
	)
	SweepSkippedTotal = NewCounter(
		"myutils_sweep_skipped_total",
		"Total number of deletions refused by the safety guard.",
	)
	SweepLastRunTimestamp = NewGauge(
		"myutils_sweep_last_run_timestamp",
		"Timestamp of the last sweep (Unix epoch seconds).",
	)
	RootFilesDeletedTotal = NewCounterVec(
		"myutils_sweep_root_files_deleted_total",
		"Total files deleted per sweep root.",
		[]string{"root"},
	)
	RootFreeBytes = NewGaugeVec(
		"myutils_root_free_bytes",
		"Free bytes on the filesystem holding each sweep root.",
		[]string{"root"},
	)
}

func registerSweepMetrics() {
	prometheus.MustRegister(SweepDuration)
	prometheus.MustRegister(FilesDeletedTotal)
	prometheus.MustRegister(DirsDeletedTotal)
	prometheus.MustRegister(BytesFreedTotal)
	prometheus.MustRegister(SweepErrorsTotal)
	prometheus.MustRegister(SweepSkippedTotal)
	prometheus.MustRegister(SweepLastRunTimestamp)
	prometheus.MustRegister(RootFilesDeletedTotal)
	prometheus.MustRegister(RootFreeBytes)
}

// RecordSweepRun stamps the start of a cycle over all roots
func RecordSweepRun(start time.Time) {
	SweepLastRunTimestamp.Set(float64(start.Unix()))
}

// ObserveRootSweep records how long the sweep of one root took
func ObserveRootSweep(elapsed time.Duration) {
	SweepDuration.Observe(elapsed.Seconds())
}

// RecordRootDeletion counts a deleted file against its sweep root
func RecordRootDeletion(root string) {
	RootFilesDeletedTotal.WithLabelValues(root).Inc()
}

// SetRootFreeBytes records free space for a sweep root
func SetRootFreeBytes(root string, free int64) {
	RootFreeBytes.WithLabelValues(root).Set(float64(free))
}
