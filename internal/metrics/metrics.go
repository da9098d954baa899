// Package metrics holds the process-wide Prometheus collectors. They are
// registered on the default registry and served by the daemon at
// metrics.path.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Routing and execution
	IntentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hearth_intents_total",
			Help: "Inbound intents by routed skill and outcome",
		},
		[]string{"skill", "outcome"}, // outcome: response, pending, failure, unmatched
	)

	SkillDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hearth_skill_execute_duration_seconds",
			Help:    "Time spent in skill Execute and approval continuations",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"skill"},
	)

	// Approvals
	ApprovalTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hearth_approval_transitions_total",
			Help: "Approval state transitions",
		},
		[]string{"state", "risk"},
	)

	ApprovalsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hearth_approvals_pending",
			Help: "Approvals awaiting a decision, deferred or prompted",
		},
	)

	// Activity bridge
	MemoryOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hearth_memory_operations_total",
			Help: "Memory recall and store calls",
		},
		[]string{"op", "status"},
	)

	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hearth_events_emitted_total",
			Help: "Telemetry events by name and delivery status",
		},
		[]string{"name", "status"},
	)

	// Wellness
	WellnessRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hearth_wellness_runs_total",
			Help: "Daily wellness aggregation runs",
		},
		[]string{"status"},
	)

	WellnessOverallScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hearth_wellness_overall_score",
			Help: "Most recent family overall wellness score",
		},
		[]string{"workspace"},
	)

	// Scheduler
	SchedulerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hearth_scheduler_runs_total",
			Help: "Scheduled task executions",
		},
		[]string{"task", "status"},
	)

	// Daemon
	ComponentHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hearth_component_healthy",
			Help: "1 when the daemon component passed its last health probe",
		},
		[]string{"component"},
	)
)

// Status returns the label value for an error outcome.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
