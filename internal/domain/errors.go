package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Task store errors
	ErrTaskNotFound      = errors.New("task not found")
	ErrTaskExists        = errors.New("task already exists")
	ErrTaskTerminal      = errors.New("task is completed — no further scheduling mutation")
	ErrInvalidTransition = errors.New("illegal lifecycle transition")

	// Admission / swap errors
	ErrCapacityExceeded = errors.New("admission would overcommit the horizon")
	ErrNoCapacity       = errors.New("no free minutes in the horizon")

	// Classifier errors
	ErrMalformedEvent = errors.New("malformed context change event")

	// Delegation boundary errors
	ErrDelegationTimeout    = errors.New("delegation request not acknowledged within wait window")
	ErrDelegationNotPending = errors.New("no pending delegation request for task")
	ErrNotDelegable         = errors.New("task type is not eligible for delegation")
	ErrQueueFull            = errors.New("delegation queue full — request rejected")

	// Snapshot errors
	ErrStaleSnapshot = errors.New("snapshot is older than the latest committed state")
)
