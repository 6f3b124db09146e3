package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Reminder and recommendation collectors. Label sets are small and fixed so
// cardinality stays bounded regardless of user count.
var (
	// ReminderRuns counts batch runs by trigger (scheduled|manual) and
	// outcome (ok|error|skipped).
	ReminderRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carlog_reminder_runs_total",
			Help: "Reminder batch runs by trigger and outcome.",
		},
		[]string{"trigger", "outcome"},
	)

	// ReminderRunDuration observes wall time of completed runs.
	ReminderRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "carlog_reminder_run_duration_seconds",
			Help:    "Duration of reminder batch runs in seconds.",
			Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	// ReminderSends counts per-user notification attempts by kind
	// (sms|maintenance) and result (sent|failed|persist_failed).
	ReminderSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carlog_reminder_sends_total",
			Help: "Notification attempts by kind and result.",
		},
		[]string{"kind", "result"},
	)

	// SchedulerRunning is 1 while a batch run holds the run lock.
	SchedulerRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "carlog_scheduler_running",
			Help: "1 while a reminder run is in progress.",
		},
	)

	// RecommendationLookups counts cache lookups by result (hit|miss|error).
	RecommendationLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carlog_recommendation_cache_lookups_total",
			Help: "Recommendation cache lookups by result.",
		},
		[]string{"result"},
	)

	// RecommendationCompute observes provider latency in seconds.
	RecommendationCompute = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "carlog_recommendation_compute_seconds",
			Help:    "Recommendation provider call duration in seconds.",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60},
		},
	)
)

func init() {
	prometheus.MustRegister(
		ReminderRuns,
		ReminderRunDuration,
		ReminderSends,
		SchedulerRunning,
		RecommendationLookups,
		RecommendationCompute,
	)
}
