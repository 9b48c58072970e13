// Package sts implements the Short-Term Scheduler: a four-level feedback
// queue over the active set. Ordering is a pure re-sort — P0 first, then
// soonest deadline, then earliest admission for fairness. When energy
// drops low enough, delegation-eligible background work is handed to the
// external worker instead of the user.
package sts

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tempohq/tempo/internal/domain"
	"github.com/tempohq/tempo/internal/infra/metrics"
	"github.com/tempohq/tempo/internal/infra/store"
)

// delegationTerms maps task types to the worker contract: spending
// ceiling and whether the user must approve the draft before execution.
// Unknown types fall back to the "general" entry.
var delegationTerms = map[string]struct {
	maxCost          float64
	approvalRequired bool
}{
	"email_reply":   {maxCost: 0.05, approvalRequired: true},
	"slack_message": {maxCost: 0.02, approvalRequired: false},
	"booking":       {maxCost: 0.50, approvalRequired: true},
	"general":       {maxCost: 0.10, approvalRequired: true},
}

// Audit receives delegate operations for the swap trail. nil disables it.
type Audit interface {
	AppendSwap(op domain.SwapOperation) error
}

// Queue orders the active set and applies the energy-delegation rule.
type Queue struct {
	store *store.Store
	audit Audit
	log   zerolog.Logger
	now   func() time.Time
}

// New creates a queue. audit may be nil.
func New(st *store.Store, audit Audit, log zerolog.Logger) *Queue {
	return &Queue{
		store: st,
		audit: audit,
		log:   log.With().Str("component", "sts").Logger(),
		now:   time.Now,
	}
}

// SetClock overrides the queue's clock. Tests only.
func (q *Queue) SetClock(now func() time.Time) { q.now = now }

// Reorder returns the active set in execution order. It reads a consistent
// snapshot and sorts it; no task state changes.
func (q *Queue) Reorder() []domain.Task {
	active, _ := q.store.ActiveSet()
	Order(active)
	return active
}

// Order sorts tasks in place by MLFQ discipline: priority level, then
// soonest deadline (no deadline last), then earliest admission, then id.
func Order(tasks []domain.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		ad, bd := a.Deadline, b.Deadline
		if !ad.Equal(bd) {
			if ad.IsZero() {
				return false
			}
			if bd.IsZero() {
				return true
			}
			return ad.Before(bd)
		}
		if !a.AdmittedAt.Equal(b.AdmittedAt) {
			return a.AdmittedAt.Before(b.AdmittedAt)
		}
		return a.ID < b.ID
	})
}

// EvaluateEnergy applies the energy-aware delegation rule. It runs once
// per energy update, not continuously, to avoid oscillation: at energy ≤ 2
// every delegation-eligible Scheduled P3 task is delegated; at energy 1,
// P2 as well. InProgress tasks are never touched. Returns the emitted
// requests — exactly one per delegated task.
func (q *Queue) EvaluateEnergy(level domain.EnergyLevel) []domain.DelegationRequest {
	if level.Level > 2 {
		return nil
	}
	minPriority := domain.P3Background
	if level.Level <= 1 {
		minPriority = domain.P2Normal
	}

	var requests []domain.DelegationRequest
	for _, t := range q.store.ListByStatus(domain.TaskScheduled) {
		if t.Priority < minPriority || !t.Delegable {
			continue
		}
		reason := "auto-delegated: energy " + energyLabel(level.Level) + ", " + t.Priority.Label() + " class"
		if _, err := q.store.TransitionWithNote(t.ID, domain.TaskDelegated, reason); err != nil {
			q.log.Warn().Err(err).Str("task", t.ID).Msg("delegation transition refused")
			continue
		}

		terms, ok := delegationTerms[t.Type]
		if !ok {
			terms = delegationTerms["general"]
		}
		req := domain.DelegationRequest{
			ID:               uuid.NewString(),
			TaskID:           t.ID,
			TaskType:         t.Type,
			MaxCost:          terms.maxCost,
			ApprovalRequired: terms.approvalRequired,
			RequestedAt:      q.now(),
		}
		requests = append(requests, req)

		if q.audit != nil {
			op := domain.SwapOperation{
				ID:     uuid.NewString(),
				Action: domain.Delegate,
				TaskID: t.ID,
				Reason: reason,
				At:     req.RequestedAt,
			}
			if err := q.audit.AppendSwap(op); err != nil {
				q.log.Warn().Err(err).Str("task", t.ID).Msg("audit append failed")
			}
		}

		metrics.DelegationsRequested.Inc()
		metrics.SwapOperations.WithLabelValues(string(domain.Delegate)).Inc()
		q.log.Info().
			Str("task", t.ID).
			Str("type", t.Type).
			Int("energy", level.Level).
			Msg("task auto-delegated")
	}
	return requests
}

func energyLabel(level int) string {
	switch level {
	case 1:
		return "1 (depleted)"
	case 2:
		return "2 (low)"
	default:
		return "ok"
	}
}
