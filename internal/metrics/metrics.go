// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPDuration observes request latency by route template, method and status.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "membership",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "status"})

	// MemberWrites counts member mutations by operation and outcome.
	MemberWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "membership",
		Name:      "member_writes_total",
		Help:      "Member create/update/delete calls.",
	}, []string{"op", "outcome"})

	// ImportRows counts CSV rows seen by the importer by outcome.
	ImportRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "membership",
		Name:      "import_rows_total",
		Help:      "Imported CSV rows by outcome (inserted, rejected, failed, dry_run).",
	}, []string{"outcome"})

	// AttendanceMarks counts attendance upserts by the field that changed.
	AttendanceMarks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "membership",
		Name:      "attendance_marks_total",
		Help:      "Attendance status/communion updates.",
	}, []string{"field"})

	// CacheLookups counts insights snapshot cache hits and misses.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "membership",
		Name:      "insights_cache_lookups_total",
		Help:      "Insights snapshot lookups by result.",
	}, []string{"snapshot", "result"})
)

// Outcome maps an error to the outcome label used by the counters.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
