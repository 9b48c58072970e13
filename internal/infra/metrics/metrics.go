// Package metrics provides Prometheus metrics for Tempo: counters, gauges,
// and histograms covering admission, disruptions, swaps, delegation, and
// energy.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Admission (LTS) ────────────────────────────────────────────────────────

// TasksAdmitted counts tasks admitted into the active set per trigger
// (daily_plan, swap_in).
var TasksAdmitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tempo",
	Name:      "tasks_admitted_total",
	Help:      "Total tasks admitted into the active set.",
}, []string{"trigger"})

// TasksSkipped counts admission candidates skipped per reason.
var TasksSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tempo",
	Name:      "tasks_skipped_total",
	Help:      "Total admission candidates skipped.",
}, []string{"reason"})

// CommittedMinutes tracks the active set's committed minutes.
var CommittedMinutes = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "tempo",
	Name:      "committed_minutes",
	Help:      "Sum of Scheduled/InProgress task durations in minutes.",
})

// ─── Disruptions ────────────────────────────────────────────────────────────

// DisruptionsClassified counts classified disruptions by severity.
var DisruptionsClassified = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tempo",
	Name:      "disruptions_classified_total",
	Help:      "Total disruptions classified, by severity.",
}, []string{"severity"})

// EventsDropped counts context-change events dropped at intake.
var EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tempo",
	Name:      "events_dropped_total",
	Help:      "Total context-change events dropped, by reason.",
}, []string{"reason"})

// ─── Swaps (MTS) ────────────────────────────────────────────────────────────

// SwapOperations counts MTS swap operations by action.
var SwapOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tempo",
	Name:      "swap_operations_total",
	Help:      "Total swap operations performed, by action.",
}, []string{"action"})

// ─── Delegation ─────────────────────────────────────────────────────────────

// DelegationsRequested counts delegation requests handed to the gateway.
var DelegationsRequested = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "tempo",
	Name:      "delegations_requested_total",
	Help:      "Total delegation requests emitted.",
})

// DelegationsAcked counts delegation acknowledgements by outcome.
var DelegationsAcked = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tempo",
	Name:      "delegations_acked_total",
	Help:      "Total delegation acknowledgements, by outcome.",
}, []string{"outcome"})

// DelegationTimeouts counts delegation requests that timed out waiting for
// an acknowledgement.
var DelegationTimeouts = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "tempo",
	Name:      "delegation_timeouts_total",
	Help:      "Total delegation requests that timed out.",
})

// ─── Energy ─────────────────────────────────────────────────────────────────

// EnergyLevel tracks the current energy level (1–5).
var EnergyLevel = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "tempo",
	Name:      "energy_level",
	Help:      "Current energy level (1-5).",
})

// ─── Pipeline ───────────────────────────────────────────────────────────────

// PassDuration tracks the duration of re-scheduling passes in seconds.
var PassDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "tempo",
	Name:      "pass_duration_seconds",
	Help:      "Re-scheduling pass duration in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"pass"})

// SnapshotVersion tracks the latest emitted snapshot version.
var SnapshotVersion = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "tempo",
	Name:      "snapshot_version",
	Help:      "Latest committed schedule snapshot version.",
})
