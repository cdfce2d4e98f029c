// Package metrics exposes the Prometheus instrumentation shared across
// domains.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	importFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pocketledger_import_files_total",
		Help: "Import files processed, labelled by channel and outcome.",
	}, []string{"channel", "status"})

	importedRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pocketledger_imported_records_total",
		Help: "Expense records written by the import pipeline.",
	}, []string{"channel"})

	skippedRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pocketledger_skipped_records_total",
		Help: "Duplicate records skipped by the import pipeline.",
	}, []string{"channel"})

	classifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pocketledger_classifications_total",
		Help: "Classification attempts, labelled by source and outcome.",
	}, []string{"source", "outcome"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pocketledger_http_requests_total",
		Help: "HTTP requests served, labelled by route and status class.",
	}, []string{"route", "status"})
)

// ObserveImport records the outcome of one import file.
func ObserveImport(channel, status string, imported, skipped int) {
	importFiles.WithLabelValues(channel, status).Inc()
	importedRecords.WithLabelValues(channel).Add(float64(imported))
	skippedRecords.WithLabelValues(channel).Add(float64(skipped))
}

// ObserveClassification records one classification attempt. Source is the
// layer that produced the answer ("llm" or "keyword").
func ObserveClassification(source, outcome string) {
	classifications.WithLabelValues(source, outcome).Inc()
}

// ObserveRequest records one served HTTP request.
func ObserveRequest(route, status string) {
	httpRequests.WithLabelValues(route, status).Inc()
}
