// Package mts implements the Medium-Term Scheduler: disruption recovery
// by swapping tasks between the active set and the backlog. Lost time
// swaps the cheapest victims out; freed time re-runs a bounded admission
// pass. Every move leaves a SwapOperation in the audit trail.
package mts

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tempohq/tempo/internal/domain"
	"github.com/tempohq/tempo/internal/infra/lts"
	"github.com/tempohq/tempo/internal/infra/metrics"
	"github.com/tempohq/tempo/internal/infra/store"
)

// Audit receives every swap operation. The SQLite layer implements it;
// nil disables the persistent trail.
type Audit interface {
	AppendSwap(op domain.SwapOperation) error
}

// Swapper absorbs disruptions against the active set.
type Swapper struct {
	store   *store.Store
	planner *lts.Planner
	audit   Audit
	log     zerolog.Logger
	now     func() time.Time
}

// New creates a swapper. audit may be nil.
func New(st *store.Store, planner *lts.Planner, audit Audit, log zerolog.Logger) *Swapper {
	return &Swapper{
		store:   st,
		planner: planner,
		audit:   audit,
		log:     log.With().Str("component", "mts").Logger(),
		now:     time.Now,
	}
}

// SetClock overrides the swapper's clock. Tests only.
func (s *Swapper) SetClock(now func() time.Time) { s.now = now }

// Apply absorbs one disruption. capacityMinutes is the current horizon
// capacity; after the primary operation the committed total is re-checked
// against it and swap-out repeats until compliant, so compounding
// disruptions never leave the active set over budget. capacityMinutes <= 0
// means no horizon has been planned yet and disables the compliance loop.
func (s *Swapper) Apply(d domain.DisruptionEvent, capacityMinutes int) []domain.SwapOperation {
	var ops []domain.SwapOperation

	switch {
	case d.DeltaMinutes < 0:
		ops = append(ops, s.swapOut(-d.DeltaMinutes, d.Cause)...)
	case d.DeltaMinutes > 0:
		ops = append(ops, s.swapIn(d.DeltaMinutes, d.Cause)...)
	}

	if capacityMinutes > 0 {
		for {
			over := s.store.CommittedMinutes() - capacityMinutes
			if over <= 0 {
				break
			}
			more := s.swapOut(over, fmt.Sprintf("capacity compliance after %s", d.Cause))
			if len(more) == 0 {
				// Only InProgress work remains; nothing left to remove.
				s.log.Warn().Int("over_minutes", over).Msg("active set over capacity, no removable tasks")
				break
			}
			ops = append(ops, more...)
		}
	}

	metrics.CommittedMinutes.Set(float64(s.store.CommittedMinutes()))
	return ops
}

// swapOut removes Scheduled tasks until lostMinutes is absorbed, cheapest
// victims first: lowest priority, then lowest energy cost, then latest
// deadline, then id. InProgress tasks are never removed.
func (s *Swapper) swapOut(lostMinutes int, cause string) []domain.SwapOperation {
	victims := s.store.ListByStatus(domain.TaskScheduled)
	sort.Slice(victims, func(i, j int) bool {
		a, b := victims[i], victims[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority // P3 before P0
		}
		if a.EnergyCost != b.EnergyCost {
			return a.EnergyCost < b.EnergyCost
		}
		ad, bd := a.Deadline, b.Deadline
		if !ad.Equal(bd) {
			if ad.IsZero() {
				return true // no deadline goes first
			}
			if bd.IsZero() {
				return false
			}
			return ad.After(bd)
		}
		return a.ID < b.ID
	})

	var ops []domain.SwapOperation
	absorbed := 0
	for _, v := range victims {
		if absorbed >= lostMinutes {
			break
		}
		reason := fmt.Sprintf("swapped out: %s", cause)
		if _, err := s.store.TransitionWithNote(v.ID, domain.TaskBacklog, reason); err != nil {
			s.log.Warn().Err(err).Str("task", v.ID).Msg("swap-out transition refused")
			continue
		}
		absorbed += v.DurationMinutes
		ops = append(ops, s.record(domain.SwapOperation{
			ID:     uuid.NewString(),
			Action: domain.SwapOut,
			TaskID: v.ID,
			Reason: reason,
			At:     s.now(),
		}))
	}

	if absorbed < lostMinutes {
		s.log.Warn().
			Int("lost", lostMinutes).
			Int("absorbed", absorbed).
			Msg("could not fully absorb lost time")
	}
	return ops
}

// swapIn admits backlog tasks into the freed budget via the bounded LTS
// pass.
func (s *Swapper) swapIn(freedMinutes int, cause string) []domain.SwapOperation {
	reason := fmt.Sprintf("swapped in: %s", cause)
	res := s.planner.FillBudget(freedMinutes, reason)

	ops := make([]domain.SwapOperation, 0, len(res.Admitted))
	for _, t := range res.Admitted {
		ops = append(ops, s.record(domain.SwapOperation{
			ID:      uuid.NewString(),
			Action:  domain.SwapIn,
			TaskID:  t.ID,
			Reason:  reason,
			NewSlot: t.AdmittedAt,
			At:      s.now(),
		}))
	}
	return ops
}

func (s *Swapper) record(op domain.SwapOperation) domain.SwapOperation {
	if s.audit != nil {
		if err := s.audit.AppendSwap(op); err != nil {
			s.log.Warn().Err(err).Str("swap", op.ID).Msg("audit append failed")
		}
	}
	metrics.SwapOperations.WithLabelValues(string(op.Action)).Inc()
	s.log.Info().
		Str("action", string(op.Action)).
		Str("task", op.TaskID).
		Str("reason", op.Reason).
		Msg("swap recorded")
	return op
}
