// Package metrics provides Prometheus metrics for the triage service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal tracks inbound HTTP requests by route and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triage",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration tracks inbound HTTP latency
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "triage",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	// FeedbackListPath counts which composer path served a feedback list
	FeedbackListPath = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triage",
			Subsystem: "feedback",
			Name:      "list_path_total",
			Help:      "Feedback list requests by query path",
		},
		[]string{"path"},
	)

	// ImportedRows tracks CSV rows by outcome
	ImportedRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triage",
			Subsystem: "imports",
			Name:      "rows_total",
			Help:      "CSV rows processed by outcome",
		},
		[]string{"outcome"},
	)

	// ClusterAnalyses tracks AI cluster analysis runs by outcome
	ClusterAnalyses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triage",
			Subsystem: "ai",
			Name:      "cluster_analyses_total",
			Help:      "Cluster analysis runs by outcome",
		},
		[]string{"outcome"},
	)

	// AIRequestDuration tracks model call latency
	AIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "triage",
			Subsystem: "ai",
			Name:      "request_duration_seconds",
			Help:      "Duration of model generation calls in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"operation"},
	)

	// CacheLookups tracks cache hits and misses
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triage",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by result",
		},
		[]string{"result"},
	)
)
