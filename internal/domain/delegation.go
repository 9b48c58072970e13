package domain

import "time"

// DelegationRequest asks the external execution worker to handle a task on
// the user's behalf. The engine only enqueues these; drafting and sending
// happen outside.
type DelegationRequest struct {
	ID       string `json:"id"`
	TaskID   string `json:"task_id"`
	TaskType string `json:"task_type"`

	// MaxCost caps what the worker may spend executing this task.
	MaxCost float64 `json:"max_cost"`

	// ApprovalRequired means the worker drafts only; the user signs off
	// before anything is sent.
	ApprovalRequired bool `json:"approval_required"`

	RequestedAt time.Time `json:"requested_at"`
}

// DelegationOutcome is the worker's verdict on a delegated task.
type DelegationOutcome string

const (
	DelegationCompleted DelegationOutcome = "completed"
	DelegationRejected  DelegationOutcome = "rejected"
	DelegationFailed    DelegationOutcome = "failed"
)

// DelegationResult is the completion acknowledgement from the worker.
type DelegationResult struct {
	TaskID  string            `json:"task_id"`
	Outcome DelegationOutcome `json:"outcome"`
	Detail  string            `json:"detail,omitempty"`
}
