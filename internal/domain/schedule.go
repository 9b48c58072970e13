package domain

import "time"

// SwapAction names what the MTS did with a task.
type SwapAction string

const (
	SwapIn   SwapAction = "swap_in"
	SwapOut  SwapAction = "swap_out"
	Delegate SwapAction = "delegate"
)

// SwapOperation is one entry in the audit/undo trail: what moved, why, and
// where it landed. Never mutated after creation.
type SwapOperation struct {
	ID      string     `json:"id"`
	Action  SwapAction `json:"action"`
	TaskID  string     `json:"task_id"`
	Reason  string     `json:"reason"`
	NewSlot time.Time  `json:"new_slot,omitempty"` // zero for swap-out
	At      time.Time  `json:"at"`
}

// SkippedTask explains why an admission candidate was not admitted.
type SkippedTask struct {
	TaskID string `json:"task_id"`
	Reason string `json:"reason"`
}

// AdmissionResult is the outcome of an LTS planning pass. Skips are
// reported, not raised: a full pass never aborts on one oversized task.
type AdmissionResult struct {
	Admitted        []Task        `json:"admitted"`
	Skipped         []SkippedTask `json:"skipped"`
	UsedMinutes     int           `json:"used_minutes"`
	CapacityMinutes int           `json:"capacity_minutes"`
}

// ScheduleSnapshot is an immutable, timestamped projection of the engine
// state emitted after every re-scheduling pass. Consumers never mutate it;
// Version increases monotonically with each committed mutation.
type ScheduleSnapshot struct {
	Version          uint64      `json:"version"`
	TakenAt          time.Time   `json:"taken_at"`
	Active           []Task      `json:"active"` // execution order
	BacklogCount     int         `json:"backlog_count"`
	CommittedMinutes int         `json:"committed_minutes"`
	CapacityMinutes  int         `json:"capacity_minutes"`
	Energy           EnergyLevel `json:"energy"`
}
