// Package kernel wires the three scheduling tiers into one ordered
// pipeline. An incoming context change flows classify → swap → re-sort →
// snapshot synchronously; there are no long-running actors in between, so
// every decision is bounded, deterministic, and explainable from the audit
// trail.
package kernel

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tempohq/tempo/internal/domain"
	"github.com/tempohq/tempo/internal/eventbus"
	"github.com/tempohq/tempo/internal/infra/delegation"
	"github.com/tempohq/tempo/internal/infra/disruption"
	"github.com/tempohq/tempo/internal/infra/energy"
	"github.com/tempohq/tempo/internal/infra/lts"
	"github.com/tempohq/tempo/internal/infra/metrics"
	"github.com/tempohq/tempo/internal/infra/mts"
	"github.com/tempohq/tempo/internal/infra/store"
	"github.com/tempohq/tempo/internal/infra/sts"
)

// Engine is the scheduling brain: LTS admission, MTS disruption recovery,
// STS ordering, and the delegation boundary behind one mutation lock.
// Mutating passes are mutually exclusive; snapshot reads take only a short
// critical section.
type Engine struct {
	mu       sync.Mutex // serializes mutating passes
	capacity int        // horizon capacity in minutes, set by PlanDay
	version  uint64     // monotonically increasing snapshot version

	store      *store.Store
	planner    *lts.Planner
	classifier *disruption.Classifier
	swapper    *mts.Swapper
	queue      *sts.Queue
	gateway    *delegation.Gateway
	energy     *energy.Estimator
	bus        eventbus.Bus
	log        zerolog.Logger
	now        func() time.Time
}

// New assembles the engine from its tiers.
func New(
	st *store.Store,
	planner *lts.Planner,
	classifier *disruption.Classifier,
	swapper *mts.Swapper,
	queue *sts.Queue,
	gateway *delegation.Gateway,
	est *energy.Estimator,
	bus eventbus.Bus,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		store:      st,
		planner:    planner,
		classifier: classifier,
		swapper:    swapper,
		queue:      queue,
		gateway:    gateway,
		energy:     est,
		bus:        bus,
		log:        log.With().Str("component", "kernel").Logger(),
		now:        time.Now,
	}
}

// SetClock overrides the engine's clock. Tests only.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// ─── LTS entry point ────────────────────────────────────────────────────────

// PlanDay runs an admission pass against the horizon's free capacity and
// records that capacity for later compliance checks.
func (e *Engine) PlanDay(availableMinutes int) domain.AdmissionResult {
	start := time.Now()
	e.mu.Lock()
	e.capacity = availableMinutes
	res := e.planner.PlanDay(availableMinutes)
	e.emitLocked()
	e.mu.Unlock()

	for range res.Admitted {
		metrics.TasksAdmitted.WithLabelValues("daily_plan").Inc()
	}
	for _, s := range res.Skipped {
		metrics.TasksSkipped.WithLabelValues(s.Reason).Inc()
	}
	metrics.PassDuration.WithLabelValues("lts").Observe(time.Since(start).Seconds())
	return res
}

// ─── Disruption pipeline ────────────────────────────────────────────────────

// HandleContextChange runs the full pipeline for one external event:
// classification, then — if the event was not dropped — the MTS swap pass
// and a snapshot emit. A malformed event is dropped with a logged reason,
// never fatal.
func (e *Engine) HandleContextChange(ev domain.ContextChangeEvent) (*domain.DisruptionEvent, []domain.SwapOperation, error) {
	d, err := e.classifier.Classify(ev)
	if err != nil {
		return nil, nil, fmt.Errorf("classify event %s: %w", ev.ID, err)
	}
	if d == nil {
		return nil, nil, nil // benign, dropped
	}

	start := time.Now()
	e.mu.Lock()
	// Freed time extends the horizon before the swap pass; otherwise the
	// compliance re-check would evict the very tasks the freed budget
	// admitted. An unplanned horizon (capacity <= 0) stays unplanned.
	if d.DeltaMinutes > 0 && e.capacity > 0 {
		e.capacity += d.DeltaMinutes
	}
	ops := e.swapper.Apply(*d, e.capacity)
	e.emitLocked()
	e.mu.Unlock()
	metrics.PassDuration.WithLabelValues("mts").Observe(time.Since(start).Seconds())
	return d, ops, nil
}

// ─── STS entry points ───────────────────────────────────────────────────────

// Reorder returns the active set in execution order. Pure re-sort.
func (e *Engine) Reorder() []domain.Task {
	return e.queue.Reorder()
}

// UpdateEnergy accepts a pushed energy reading and evaluates the
// delegation rule exactly once against the resulting level.
func (e *Engine) UpdateEnergy(level domain.EnergyLevel) []domain.DelegationRequest {
	e.energy.Update(level)
	current := e.energy.Current()
	metrics.EnergyLevel.Set(float64(current.Level))

	e.mu.Lock()
	requests := e.queue.EvaluateEnergy(current)
	submitted := requests[:0]
	for _, req := range requests {
		if err := e.gateway.Submit(req); err != nil {
			// Gateway already returned the task to Scheduled.
			e.log.Warn().Err(err).Str("task", req.TaskID).Msg("delegation submit rejected")
			continue
		}
		submitted = append(submitted, req)
	}
	if len(submitted) > 0 {
		e.emitLocked()
	}
	e.mu.Unlock()
	return submitted
}

// CurrentEnergy is the pull interface for the latest energy reading.
func (e *Engine) CurrentEnergy() domain.EnergyLevel {
	return e.energy.Current()
}

// ─── Delegation boundary ────────────────────────────────────────────────────

// AcknowledgeDelegation consumes a completion callback from the external
// worker.
func (e *Engine) AcknowledgeDelegation(res domain.DelegationResult) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.gateway.Acknowledge(res); err != nil {
		return err
	}
	e.emitLocked()
	return nil
}

// ─── Task intake ────────────────────────────────────────────────────────────

// AddTask registers an externally produced task (always enters Backlog).
func (e *Engine) AddTask(t domain.Task) (domain.Task, error) {
	t.Status = domain.TaskBacklog
	e.mu.Lock()
	defer e.mu.Unlock()
	saved, err := e.store.Upsert(t)
	if err != nil {
		return domain.Task{}, err
	}
	e.emitLocked()
	return saved, nil
}

// StartTask marks a scheduled task as in progress.
func (e *Engine) StartTask(id string) (domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.store.Transition(id, domain.TaskInProgress)
	if err != nil {
		return domain.Task{}, err
	}
	e.emitLocked()
	return t, nil
}

// CompleteTask applies the explicit completion signal. Terminal.
func (e *Engine) CompleteTask(id string) (domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.store.Transition(id, domain.TaskCompleted)
	if err != nil {
		return domain.Task{}, err
	}
	e.emitLocked()
	return t, nil
}

// ─── Snapshots ──────────────────────────────────────────────────────────────

// Snapshot returns the read-only projection consumers see: the ordered
// active set, backlog summary, and current energy.
func (e *Engine) Snapshot() domain.ScheduleSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// snapshotLocked builds the projection. Caller holds e.mu, so the version
// always pairs with the state it was bumped for.
func (e *Engine) snapshotLocked() domain.ScheduleSnapshot {
	active, committed := e.store.ActiveSet()
	sts.Order(active)

	return domain.ScheduleSnapshot{
		Version:          e.version,
		TakenAt:          e.now(),
		Active:           active,
		BacklogCount:     e.store.Count(domain.TaskBacklog),
		CommittedMinutes: committed,
		CapacityMinutes:  e.capacity,
		Energy:           e.energy.Current(),
	}
}

// CheckVersion tells a caller whether the snapshot it acted on is still
// current. Advisory, not fatal: stale callers should refetch.
func (e *Engine) CheckVersion(v uint64) error {
	e.mu.Lock()
	current := e.version
	e.mu.Unlock()
	if v < current {
		return fmt.Errorf("have %d, latest %d: %w", v, current, domain.ErrStaleSnapshot)
	}
	return nil
}

// emitLocked bumps the version and publishes the snapshot of exactly the
// state that bump covers. Caller holds e.mu; Publish never blocks, so the
// lock is held across it safely.
func (e *Engine) emitLocked() {
	e.version++
	snap := e.snapshotLocked()
	metrics.SnapshotVersion.Set(float64(snap.Version))
	metrics.CommittedMinutes.Set(float64(snap.CommittedMinutes))
	if e.bus != nil {
		e.bus.Publish(snap)
	}
}
