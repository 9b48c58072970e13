package domain

import "time"

// ContextChangeEvent is a translated external signal: a calendar edit, an
// incoming message, a finished meeting. Integration adapters produce these;
// the engine only consumes them.
type ContextChangeEvent struct {
	ID     string `json:"id"`
	Source string `json:"source"` // calendar | mail | chat

	// ChangeType names what happened: meeting_ended_early, meeting_overrun,
	// schedule_conflict, cancelled_meeting, new_message, task_completed.
	ChangeType string `json:"change_type"`

	// DeltaMinutes is the signed time impact: positive = time freed,
	// negative = time lost.
	DeltaMinutes int `json:"delta_minutes"`

	AffectedTaskIDs []string  `json:"affected_task_ids,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Validate rejects events the classifier cannot reason about. Unknown task
// ids are tolerated (the adapter may be ahead of the store); a missing id
// or timestamp is not.
func (e ContextChangeEvent) Validate() error {
	if e.ID == "" || e.ChangeType == "" || e.Timestamp.IsZero() {
		return ErrMalformedEvent
	}
	return nil
}

// Severity grades a disruption. Ordering matters: comparisons use the
// numeric value (Minor < Major < Critical).
type Severity int

const (
	SeverityMinor Severity = iota
	SeverityMajor
	SeverityCritical
)

// String returns a human-readable severity label.
func (s Severity) String() string {
	switch s {
	case SeverityMinor:
		return "MINOR"
	case SeverityMajor:
		return "MAJOR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ClampSeverity forces an adjusted severity back into the valid range.
func ClampSeverity(s Severity) Severity {
	if s < SeverityMinor {
		return SeverityMinor
	}
	if s > SeverityCritical {
		return SeverityCritical
	}
	return s
}

// DisruptionEvent is the classifier's verdict on a context change. It is
// append-only audit material: created once, never mutated.
type DisruptionEvent struct {
	ID              string    `json:"id"`
	EventID         string    `json:"event_id"` // originating ContextChangeEvent
	Severity        Severity  `json:"severity"`
	DeltaMinutes    int       `json:"delta_minutes"`
	AffectedTaskIDs []string  `json:"affected_task_ids,omitempty"`
	Cause           string    `json:"cause"`
	ClassifiedAt    time.Time `json:"classified_at"`
}
