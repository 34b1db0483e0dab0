// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics counts what an ingest run did. Counters live on a
// private registry so tests and repeated runs in one process never
// collide; a run can dump them as a node-exporter textfile.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pdiddy/medline2sql/pkg/types"
)

const namespace = "medline2sql"

// File statuses.
const (
	FileProcessed = "processed"
	FileSkipped   = "skipped"
	FileFailed    = "failed"
)

// Record outcomes.
const (
	RecordTransformed = "transformed"
	RecordDropped     = "dropped"
)

// Metrics holds the counters of one run.
type Metrics struct {
	registry *prometheus.Registry

	files        *prometheus.CounterVec
	records      *prometheus.CounterVec
	rows         *prometheus.CounterVec
	fileDuration prometheus.Histogram
}

// New returns Metrics registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Source files seen, by status.",
		}, []string{"status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records read from source files, by outcome.",
		}, []string{"outcome"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Rows appended to the store, by table and duplicate outcome.",
		}, []string{"table", "outcome"}),
		fileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "file_duration_seconds",
			Help:      "Time to transform and persist one source file.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
	m.registry.MustRegister(m.files, m.records, m.rows, m.fileDuration)
	return m
}

// Registry returns the registry the counters live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// File counts one file with the given status.
func (m *Metrics) File(status string) {
	m.files.WithLabelValues(status).Inc()
}

// Records counts n records with the given outcome.
func (m *Metrics) Records(outcome string, n int) {
	m.records.WithLabelValues(outcome).Add(float64(n))
}

// Rows counts appended rows per duplicate outcome.
func (m *Metrics) Rows(table string, outcomes []types.DuplicateOutcome) {
	for _, o := range outcomes {
		m.rows.WithLabelValues(table, o.String()).Inc()
	}
}

// ObserveFile records how long one file took.
func (m *Metrics) ObserveFile(d time.Duration) {
	m.fileDuration.Observe(d.Seconds())
}

// WriteTextfile writes every metric to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
