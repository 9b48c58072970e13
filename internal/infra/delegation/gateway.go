// Package delegation is the boundary to the external execution worker.
// The engine only enqueues requests here and consumes acknowledgements;
// drafting and sending happen outside. An unacknowledged request past the
// wait window is treated as failed and the task re-enters normal
// scheduling — never silently lost.
package delegation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tempohq/tempo/internal/domain"
	"github.com/tempohq/tempo/internal/infra/metrics"
	"github.com/tempohq/tempo/internal/infra/store"
)

// Config configures the gateway boundary.
type Config struct {
	AckTimeout    time.Duration // wait window before a request is declared failed
	MaxPending    int           // bounded pending table; reject-new beyond this
	SweepInterval time.Duration // how often the timeout reaper runs
}

// DefaultConfig returns production gateway defaults.
func DefaultConfig() Config {
	return Config{
		AckTimeout:    15 * time.Minute,
		MaxPending:    256,
		SweepInterval: time.Minute,
	}
}

// Gateway tracks in-flight delegation requests.
type Gateway struct {
	mu      sync.Mutex
	cfg     Config
	pending map[string]domain.DelegationRequest // keyed by task id
	store   *store.Store
	log     zerolog.Logger
	now     func() time.Time
}

// New creates a gateway.
func New(cfg Config, st *store.Store, log zerolog.Logger) *Gateway {
	return &Gateway{
		cfg:     cfg,
		pending: make(map[string]domain.DelegationRequest),
		store:   st,
		log:     log.With().Str("component", "delegation").Logger(),
		now:     time.Now,
	}
}

// SetClock overrides the gateway's clock. Tests only.
func (g *Gateway) SetClock(now func() time.Time) { g.now = now }

// Submit registers a request with the worker boundary. When the pending
// table is full the request is rejected immediately and the task returns
// to Scheduled — there is no queueing delay beyond ordering.
func (g *Gateway) Submit(req domain.DelegationRequest) error {
	g.mu.Lock()
	if len(g.pending) >= g.cfg.MaxPending {
		g.mu.Unlock()
		if _, err := g.store.Transition(req.TaskID, domain.TaskScheduled); err != nil {
			g.log.Error().Err(err).Str("task", req.TaskID).Msg("revert after queue-full failed")
		}
		return fmt.Errorf("submit %s: %w", req.TaskID, domain.ErrQueueFull)
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = g.now()
	}
	g.pending[req.TaskID] = req
	g.mu.Unlock()

	g.log.Info().
		Str("task", req.TaskID).
		Str("type", req.TaskType).
		Bool("approval_required", req.ApprovalRequired).
		Float64("max_cost", req.MaxCost).
		Msg("delegation request submitted")
	return nil
}

// Acknowledge consumes the worker's completion callback. completed ends
// the task; rejected and failed return it to Scheduled for re-evaluation.
func (g *Gateway) Acknowledge(res domain.DelegationResult) error {
	g.mu.Lock()
	_, ok := g.pending[res.TaskID]
	if ok {
		delete(g.pending, res.TaskID)
	}
	g.mu.Unlock()

	if !ok {
		return fmt.Errorf("acknowledge %s: %w", res.TaskID, domain.ErrDelegationNotPending)
	}

	metrics.DelegationsAcked.WithLabelValues(string(res.Outcome)).Inc()

	var target domain.TaskStatus
	switch res.Outcome {
	case domain.DelegationCompleted:
		target = domain.TaskCompleted
	default: // rejected, failed
		target = domain.TaskScheduled
	}

	if _, err := g.store.Transition(res.TaskID, target); err != nil {
		return fmt.Errorf("acknowledge %s: %w", res.TaskID, err)
	}

	g.log.Info().
		Str("task", res.TaskID).
		Str("outcome", string(res.Outcome)).
		Msg("delegation acknowledged")
	return nil
}

// SweepTimeouts declares every request older than the wait window failed
// and returns the affected tasks to Scheduled. Returns the task ids it
// reverted.
func (g *Gateway) SweepTimeouts() []string {
	deadline := g.now().Add(-g.cfg.AckTimeout)

	g.mu.Lock()
	var expired []string
	for id, req := range g.pending {
		if req.RequestedAt.Before(deadline) {
			expired = append(expired, id)
			delete(g.pending, id)
		}
	}
	g.mu.Unlock()

	for _, id := range expired {
		metrics.DelegationTimeouts.Inc()
		if _, err := g.store.Transition(id, domain.TaskScheduled); err != nil {
			g.log.Error().Err(err).Str("task", id).Msg("revert after timeout failed")
			continue
		}
		g.log.Warn().
			Str("task", id).
			Dur("timeout", g.cfg.AckTimeout).
			Msg("delegation timed out, task rescheduled")
	}
	return expired
}

// Run drives the timeout reaper until the context ends.
func (g *Gateway) Run(ctx context.Context) {
	ticker := time.NewTicker(g.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.SweepTimeouts()
		}
	}
}

// Pending returns the number of in-flight requests.
func (g *Gateway) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// PendingFor reports whether a request is in flight for the task.
func (g *Gateway) PendingFor(taskID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.pending[taskID]
	return ok
}
