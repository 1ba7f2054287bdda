// Package metrics holds the domain counters exported next to the HTTP metrics at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuditEntries counts audit entries handed to the sink, by action and object type.
	AuditEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orca_audit_entries_total",
			Help: "Audit entries emitted.",
		},
		[]string{"action", "object_type"},
	)

	// AuditFailures counts swallowed failures in the audit pipeline, by stage.
	AuditFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orca_audit_failures_total",
			Help: "Audit pipeline failures that were logged and discarded.",
		},
		[]string{"stage"},
	)

	// SharedMetricRows counts shared folder metric row transitions.
	SharedMetricRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orca_shared_metric_rows_total",
			Help: "Shared folder metric rows opened, closed, or rewritten.",
		},
		[]string{"op"},
	)

	DownloadJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orca_download_jobs_total",
			Help: "Download archive jobs by outcome.",
		},
		[]string{"status"},
	)

	DownloadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orca_download_job_duration_seconds",
			Help:    "Wall time of download archive jobs.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)
)
