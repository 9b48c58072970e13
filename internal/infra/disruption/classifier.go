// Package disruption turns raw context-change events into severity-graded
// disruption events. Benign changes are dropped at the door; everything
// else is classified by an ordered first-match rule set and appended to
// the audit trail.
package disruption

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tempohq/tempo/internal/domain"
	"github.com/tempohq/tempo/internal/infra/metrics"
	"github.com/tempohq/tempo/internal/infra/store"
)

// Config holds the classification thresholds.
type Config struct {
	MinDeltaMinutes      int // events below this magnitude are dropped
	MajorDeltaMinutes    int // |delta| at or above → at least Major
	CriticalDeltaMinutes int // |delta| at or above → Critical
	CascadeCount         int // more than this many scheduled tasks affected → Critical
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		MinDeltaMinutes:      5,
		MajorDeltaMinutes:    30,
		CriticalDeltaMinutes: 90,
		CascadeCount:         3,
	}
}

// Audit receives every classified disruption. The SQLite layer implements
// it; nil disables the persistent trail.
type Audit interface {
	AppendDisruption(ev domain.DisruptionEvent) error
}

// Classifier grades context changes.
type Classifier struct {
	cfg     Config
	store   *store.Store
	profile domain.Profile
	audit   Audit
	log     zerolog.Logger
	now     func() time.Time
}

// New creates a classifier. profile and audit may be nil.
func New(cfg Config, st *store.Store, profile domain.Profile, audit Audit, log zerolog.Logger) *Classifier {
	if profile == nil {
		profile = domain.DefaultProfile{}
	}
	return &Classifier{
		cfg:     cfg,
		store:   st,
		profile: profile,
		audit:   audit,
		log:     log.With().Str("component", "classifier").Logger(),
		now:     time.Now,
	}
}

// SetClock overrides the classifier's clock. Tests only.
func (c *Classifier) SetClock(now func() time.Time) { c.now = now }

// SetThresholds swaps the classification thresholds (config hot reload).
func (c *Classifier) SetThresholds(cfg Config) { c.cfg = cfg }

// Classify grades a context change. Returns (nil, nil) when the event is
// benign and dropped; ErrMalformedEvent when it cannot be reasoned about.
// The returned DisruptionEvent is append-only — created here, never
// mutated.
func (c *Classifier) Classify(ev domain.ContextChangeEvent) (*domain.DisruptionEvent, error) {
	if err := ev.Validate(); err != nil {
		metrics.EventsDropped.WithLabelValues("malformed").Inc()
		c.log.Warn().Str("event", ev.ID).Str("source", ev.Source).Msg("malformed event dropped")
		return nil, err
	}

	magnitude := ev.DeltaMinutes
	if magnitude < 0 {
		magnitude = -magnitude
	}
	if magnitude < c.cfg.MinDeltaMinutes {
		metrics.EventsDropped.WithLabelValues("benign").Inc()
		c.log.Debug().Str("event", ev.ID).Int("delta", ev.DeltaMinutes).Msg("benign event dropped")
		return nil, nil
	}

	affectsP0, scheduledAffected := c.impact(ev.AffectedTaskIDs)

	// Ordered rules, first match wins.
	var severity domain.Severity
	switch {
	case magnitude >= c.cfg.CriticalDeltaMinutes || affectsP0 || scheduledAffected > c.cfg.CascadeCount:
		severity = domain.SeverityCritical
	case magnitude >= c.cfg.MajorDeltaMinutes || scheduledAffected >= 2:
		severity = domain.SeverityMajor
	default:
		severity = domain.SeverityMinor
	}

	// Personalization shifts the computed level after threshold
	// comparison, clamped to the valid range.
	if adj := c.profile.SeverityAdjustment(ev.ChangeType); adj != 0 {
		severity = domain.ClampSeverity(severity + domain.Severity(adj))
	}

	out := domain.DisruptionEvent{
		ID:              uuid.NewString(),
		EventID:         ev.ID,
		Severity:        severity,
		DeltaMinutes:    ev.DeltaMinutes,
		AffectedTaskIDs: ev.AffectedTaskIDs,
		Cause:           causeSummary(ev, scheduledAffected),
		ClassifiedAt:    c.now(),
	}

	if c.audit != nil {
		if err := c.audit.AppendDisruption(out); err != nil {
			c.log.Warn().Err(err).Str("disruption", out.ID).Msg("audit append failed")
		}
	}

	metrics.DisruptionsClassified.WithLabelValues(severity.String()).Inc()
	c.log.Info().
		Str("event", ev.ID).
		Str("severity", severity.String()).
		Int("delta", ev.DeltaMinutes).
		Int("affected", scheduledAffected).
		Msg("disruption classified")
	return &out, nil
}

// impact inspects the affected task ids against the store. Unknown ids are
// tolerated — the adapter may know about tasks the engine has not seen.
func (c *Classifier) impact(ids []string) (affectsP0 bool, scheduledAffected int) {
	for _, id := range ids {
		t, err := c.store.Get(id)
		if err != nil {
			continue
		}
		if t.Priority == domain.P0Urgent {
			affectsP0 = true
		}
		if t.Active() {
			scheduledAffected++
		}
	}
	return affectsP0, scheduledAffected
}

func causeSummary(ev domain.ContextChangeEvent, affected int) string {
	verb := "freed"
	mins := ev.DeltaMinutes
	if mins < 0 {
		verb = "lost"
		mins = -mins
	}
	return fmt.Sprintf("%s from %s: %s %dmin, %d scheduled task(s) affected",
		ev.ChangeType, ev.Source, verb, mins, affected)
}
