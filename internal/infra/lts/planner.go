// Package lts implements the Long-Term Scheduler: daily (or on-demand)
// admission from the backlog into the active working set. Candidates are
// ranked by a weighted score and greedily bin-packed against the horizon's
// free minutes — best-fit, so one oversized low-value task never starves
// the short high-value ones behind it.
package lts

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/tempohq/tempo/internal/domain"
	"github.com/tempohq/tempo/internal/infra/store"
)

// Config holds the admission scoring weights.
type Config struct {
	WeightUrgency  float64 // deadline proximity
	WeightPriority float64 // P0–P3 class weight
	WeightPeak     float64 // energy-cost vs. circadian-curve alignment
	WeightDuration float64 // SJF-style short-task preference
}

// DefaultConfig returns the production scoring weights.
func DefaultConfig() Config {
	return Config{
		WeightUrgency:  0.45,
		WeightPriority: 0.30,
		WeightPeak:     0.15,
		WeightDuration: 0.10,
	}
}

// Curve supplies the circadian baseline for peak-hour alignment. The
// energy estimator implements it.
type Curve interface {
	BaselineAt(t time.Time) int
}

// Planner scores and admits backlog tasks.
type Planner struct {
	cfg     Config
	store   *store.Store
	curve   Curve
	profile domain.Profile
	log     zerolog.Logger
	now     func() time.Time
}

// New creates a planner. profile may be nil (no personalization).
func New(cfg Config, st *store.Store, curve Curve, profile domain.Profile, log zerolog.Logger) *Planner {
	if profile == nil {
		profile = domain.DefaultProfile{}
	}
	return &Planner{
		cfg:     cfg,
		store:   st,
		curve:   curve,
		profile: profile,
		log:     log.With().Str("component", "lts").Logger(),
		now:     time.Now,
	}
}

// SetClock overrides the planner's clock. Tests only.
func (p *Planner) SetClock(now func() time.Time) { p.now = now }

// SetWeights swaps the scoring weights (config hot reload).
func (p *Planner) SetWeights(cfg Config) { p.cfg = cfg }

// PlanDay admits backlog tasks into the horizon's free capacity. Minutes
// already reserved by the active set count against the capacity in the
// same bias-corrected currency the packer reserves in, which makes the
// pass idempotent: re-running against an unchanged backlog reproduces the
// same active set. Skipped tasks are reported with a reason, never raised.
func (p *Planner) PlanDay(availableMinutes int) domain.AdmissionResult {
	budget := availableMinutes - p.reservedMinutes(p.bias())

	res := p.fill(budget, "admitted by daily planning")
	res.CapacityMinutes = availableMinutes
	res.UsedMinutes = p.store.CommittedMinutes()

	p.log.Info().
		Int("capacity", availableMinutes).
		Int("admitted", len(res.Admitted)).
		Int("skipped", len(res.Skipped)).
		Int("committed", res.UsedMinutes).
		Msg("plan pass complete")
	return res
}

// FillBudget is the bounded admission pass the MTS runs after a swap-in
// disruption: the same scoring, restricted to the freed-minute budget.
func (p *Planner) FillBudget(budgetMinutes int, reason string) domain.AdmissionResult {
	res := p.fill(budgetMinutes, reason)
	res.CapacityMinutes = budgetMinutes
	return res
}

func (p *Planner) fill(budget int, reason string) domain.AdmissionResult {
	var res domain.AdmissionResult

	backlog := p.store.ListByStatus(domain.TaskBacklog)
	if len(backlog) == 0 {
		return res
	}

	now := p.now()
	ranked := p.rank(backlog, now)
	bias := p.bias()

	remaining := budget
	for _, c := range ranked {
		need := int(math.Ceil(float64(c.task.DurationMinutes) * bias))
		if need > remaining {
			res.Skipped = append(res.Skipped, domain.SkippedTask{
				TaskID: c.task.ID,
				Reason: "capacity",
			})
			continue
		}
		t, err := p.store.TransitionWithNote(c.task.ID, domain.TaskScheduled, reason)
		if err != nil {
			// Resolved locally: skip to the next-best candidate.
			res.Skipped = append(res.Skipped, domain.SkippedTask{
				TaskID: c.task.ID,
				Reason: err.Error(),
			})
			continue
		}
		res.Admitted = append(res.Admitted, t)
		remaining -= need
	}
	return res
}

// bias is the estimation-bias multiplier applied to every reserved
// duration. A bias below 1.0 is ignored so the schedule never reserves
// less than the raw estimate.
func (p *Planner) bias() float64 {
	b := p.profile.EstimationBias()
	if b < 1.0 {
		return 1.0
	}
	return b
}

// reservedMinutes totals the active set's bias-corrected estimates. The
// budget must be charged in the same currency fill reserves in; raw
// committed minutes would under-count with a bias above 1.0 and let a
// re-plan overcommit the horizon.
func (p *Planner) reservedMinutes(bias float64) int {
	active, _ := p.store.ActiveSet()
	total := 0
	for _, t := range active {
		total += int(math.Ceil(float64(t.DurationMinutes) * bias))
	}
	return total
}

// ─── Scoring ────────────────────────────────────────────────────────────────

type scored struct {
	task  domain.Task
	score float64
}

// Score computes the weighted admission score for one task.
//
//	0.45·deadline_urgency + 0.30·priority + 0.15·peak_alignment + 0.10·duration
func (p *Planner) Score(t domain.Task, now time.Time) float64 {
	return p.cfg.WeightUrgency*t.DeadlineUrgency(now) +
		p.cfg.WeightPriority*t.Priority.Weight() +
		p.cfg.WeightPeak*p.peakAlignment(t, now) +
		p.cfg.WeightDuration*t.DurationScore()
}

// peakAlignment rewards tasks whose energy cost matches the circadian
// baseline at their preferred start (or now, when no hint is given): a
// cost-5 task at a level-5 hour scores 1.0, a cost-5 task at a level-1
// hour scores 0.
func (p *Planner) peakAlignment(t domain.Task, now time.Time) float64 {
	ref := t.PreferredStart
	if ref.IsZero() {
		ref = now
	}
	baseline := p.curve.BaselineAt(ref)
	diff := t.EnergyCost - baseline
	if diff < 0 {
		diff = -diff
	}
	return 1.0 - float64(diff)/4.0
}

// rank sorts candidates best-first. Ties break by earliest deadline, then
// by task id, so the admission set is deterministic.
func (p *Planner) rank(tasks []domain.Task, now time.Time) []scored {
	all := make([]scored, 0, len(tasks))
	for _, t := range tasks {
		all = append(all, scored{task: t, score: p.Score(t, now)})
	}

	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.score != b.score {
			return a.score > b.score
		}
		ad, bd := a.task.Deadline, b.task.Deadline
		if !ad.Equal(bd) {
			if ad.IsZero() {
				return false
			}
			if bd.IsZero() {
				return true
			}
			return ad.Before(bd)
		}
		return a.task.ID < b.task.ID
	})
	return all
}
