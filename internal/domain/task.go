// Package domain holds the core scheduling types shared by every tier.
// A Task flows through the engine: backlog → admission (LTS) → ordering
// (STS) → execution, with the MTS swapping tasks in and out as the day
// gets disrupted.
package domain

import "time"

// TaskStatus tracks task lifecycle.
type TaskStatus string

const (
	TaskBacklog    TaskStatus = "BACKLOG"
	TaskScheduled  TaskStatus = "SCHEDULED"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskDelegated  TaskStatus = "DELEGATED"
	TaskCompleted  TaskStatus = "COMPLETED"
)

// Priority is one of four ordered urgency classes, P0 most urgent.
type Priority int

const (
	P0Urgent     Priority = 0 // hard deadline within hours, external dependency
	P1Important  Priority = 1 // due today, high impact, upstream blocker
	P2Normal     Priority = 2 // routine work, flexible deadline
	P3Background Priority = 3 // nice-to-have, low-energy filler, delegatable
)

// Label returns a human-readable label for a priority class.
func (p Priority) Label() string {
	switch p {
	case P0Urgent:
		return "URGENT"
	case P1Important:
		return "IMPORTANT"
	case P2Normal:
		return "NORMAL"
	case P3Background:
		return "BACKGROUND"
	default:
		return "UNKNOWN"
	}
}

// Weight maps a priority class to its admission-scoring weight.
func (p Priority) Weight() float64 {
	switch p {
	case P0Urgent:
		return 1.0
	case P1Important:
		return 0.7
	case P2Normal:
		return 0.4
	case P3Background:
		return 0.1
	default:
		return 0.4
	}
}

// Clamp forces a priority into the valid P0–P3 range.
func (p Priority) Clamp() Priority {
	if p < P0Urgent {
		return P0Urgent
	}
	if p > P3Background {
		return P3Background
	}
	return p
}

// Task is the central entity the three tiers schedule.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	// Type routes delegation: email_reply, slack_message, booking, general.
	Type string `json:"type"`

	Priority        Priority  `json:"priority"`
	DurationMinutes int       `json:"duration_minutes"`
	EnergyCost      int       `json:"energy_cost"` // 1–5
	Deadline        time.Time `json:"deadline,omitempty"`
	PreferredStart  time.Time `json:"preferred_start,omitempty"`

	Status    TaskStatus `json:"status"`
	Delegable bool       `json:"delegable"`

	// SwapNote records why the task was last swapped out of the active set.
	SwapNote string `json:"swap_note,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// AdmittedAt is set when the task enters the active set; it is the
	// FIFO tie-break within an MLFQ level.
	AdmittedAt time.Time `json:"admitted_at,omitempty"`
}

// IsTerminal reports whether the task has reached its final state.
// Completed is the only terminal status; no scheduling mutation may
// follow it.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskCompleted
}

// Active reports whether the task occupies committed schedule minutes.
func (t *Task) Active() bool {
	return t.Status == TaskScheduled || t.Status == TaskInProgress
}

// HasDeadline reports whether a deadline is set.
func (t *Task) HasDeadline() bool {
	return !t.Deadline.IsZero()
}

// DeadlineUrgency is a monotonically increasing function of deadline
// proximity in [0, 1]. It saturates at 1.0 once the task is overdue or due
// within two hours; a task with no deadline scores 0.
func (t *Task) DeadlineUrgency(now time.Time) float64 {
	if !t.HasDeadline() {
		return 0
	}
	remaining := t.Deadline.Sub(now)
	if remaining <= 2*time.Hour {
		return 1.0
	}
	hours := remaining.Hours()
	// 2h → 1.0, 24h → ~0.08, falls off hyperbolically.
	return 2.0 / hours
}

// DurationScore favors shorter tasks, SJF-style: 1 / (1 + minutes/60).
func (t *Task) DurationScore() float64 {
	return 1.0 / (1.0 + float64(t.DurationMinutes)/60.0)
}

// LegalTransition reports whether moving a task from one status to another
// is an edge in the lifecycle graph:
//
//	Backlog → Scheduled           (LTS admission)
//	Scheduled ↔ Backlog           (MTS swap)
//	Scheduled → InProgress        (execution start)
//	Scheduled/InProgress → Delegated
//	Delegated → Scheduled         (rejection or gateway timeout)
//	any non-terminal → Completed
func LegalTransition(from, to TaskStatus) bool {
	if from == TaskCompleted {
		return false
	}
	if to == TaskCompleted {
		return true
	}
	switch from {
	case TaskBacklog:
		return to == TaskScheduled
	case TaskScheduled:
		return to == TaskBacklog || to == TaskInProgress || to == TaskDelegated
	case TaskInProgress:
		return to == TaskDelegated
	case TaskDelegated:
		return to == TaskScheduled
	}
	return false
}
