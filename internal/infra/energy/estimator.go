// Package energy tracks the user's current energy level (1–5) for the
// scheduling tiers. The baseline is a 24-hour circadian curve; pushed
// readings override it, and a user-reported value decays back toward the
// baseline over a fixed window so a stale manual entry never permanently
// wins.
package energy

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tempohq/tempo/internal/domain"
)

// DefaultCurve is the stock circadian baseline, indexed by hour of day:
// low overnight, morning ramp, post-lunch dip, afternoon peak, evening
// decline.
var DefaultCurve = [24]int{
	1, 1, 1, 1, 1, 1, // 00–05: sleep
	2, 3, 4, 4, 5, 4, // 06–11: morning ramp + peak
	3, 3, 4, 5, 4, 3, // 12–17: post-lunch dip + afternoon peak
	3, 2, 2, 2, 1, 1, // 18–23: evening decline
}

// baselineConfidence is the confidence attached to purely time-based
// readings.
const baselineConfidence = 0.6

// Config configures the estimator.
type Config struct {
	// DecayWindow is how long a user-reported value stays influential
	// before the time-based baseline takes over.
	DecayWindow time.Duration
}

// DefaultConfig returns production estimator defaults.
func DefaultConfig() Config {
	return Config{DecayWindow: 2 * time.Hour}
}

// Persister stores the latest user report so it survives restarts. The
// SQLite layer implements it; nil disables persistence.
type Persister interface {
	SaveEnergyReport(e domain.EnergyLevel) error
}

// Estimator is the engine's single source of energy truth. It keeps only
// the latest reading plus its timestamp — all the decay rule needs.
type Estimator struct {
	mu      sync.Mutex
	cfg     Config
	curve   [24]int
	latest  *domain.EnergyLevel
	persist Persister
	log     zerolog.Logger
	now     func() time.Time
}

// New creates an estimator with the default circadian curve.
func New(cfg Config, persist Persister, log zerolog.Logger) *Estimator {
	e := &Estimator{
		cfg:     cfg,
		curve:   DefaultCurve,
		persist: persist,
		log:     log.With().Str("component", "energy").Logger(),
		now:     time.Now,
	}
	return e
}

// SetClock overrides the estimator's clock. Tests only.
func (e *Estimator) SetClock(now func() time.Time) {
	e.mu.Lock()
	e.now = now
	e.mu.Unlock()
}

// SetCurve replaces the circadian baseline with a learned 24-hour curve
// pushed by the profiling subsystem. Short or nil curves are ignored.
func (e *Estimator) SetCurve(curve []int) {
	if len(curve) != 24 {
		return
	}
	e.mu.Lock()
	for i, v := range curve {
		e.curve[i] = domain.ClampEnergy(v)
	}
	e.mu.Unlock()
}

// Update accepts a pushed energy reading. The new value supersedes the
// previous one; user-reported values additionally start the decay clock.
func (e *Estimator) Update(level domain.EnergyLevel) domain.EnergyLevel {
	level.Level = domain.ClampEnergy(level.Level)
	if level.Confidence <= 0 || level.Confidence > 1 {
		level.Confidence = 1.0
	}
	if level.Provenance == "" {
		level.Provenance = domain.EnergyInferred
	}

	e.mu.Lock()
	if level.ObservedAt.IsZero() {
		level.ObservedAt = e.now()
	}
	e.latest = &level
	e.mu.Unlock()

	if e.persist != nil && level.Provenance == domain.EnergyUserReported {
		if err := e.persist.SaveEnergyReport(level); err != nil {
			e.log.Warn().Err(err).Msg("persist energy report failed")
		}
	}

	e.log.Debug().
		Int("level", level.Level).
		Str("provenance", string(level.Provenance)).
		Msg("energy updated")
	return level
}

// Current returns the energy level the tiers should schedule against.
// A user report inside the decay window blends linearly toward the
// circadian baseline, with confidence falling linearly over the window;
// once the window expires the baseline wins outright.
func (e *Estimator) Current() domain.EnergyLevel {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	baseline := e.curve[now.Hour()%24]

	if e.latest == nil {
		return domain.EnergyLevel{
			Level:      baseline,
			Confidence: baselineConfidence,
			Provenance: domain.EnergyTimeBased,
			ObservedAt: now,
		}
	}

	latest := *e.latest
	age := now.Sub(latest.ObservedAt)

	if latest.Provenance != domain.EnergyUserReported {
		// Inferred readings are used as-is until superseded or stale.
		if age <= e.cfg.DecayWindow {
			return latest
		}
		return domain.EnergyLevel{
			Level:      baseline,
			Confidence: baselineConfidence,
			Provenance: domain.EnergyTimeBased,
			ObservedAt: now,
		}
	}

	if age >= e.cfg.DecayWindow {
		return domain.EnergyLevel{
			Level:      baseline,
			Confidence: baselineConfidence,
			Provenance: domain.EnergyTimeBased,
			ObservedAt: now,
		}
	}

	frac := float64(age) / float64(e.cfg.DecayWindow)
	blended := float64(latest.Level) + (float64(baseline)-float64(latest.Level))*frac
	return domain.EnergyLevel{
		Level:      domain.ClampEnergy(int(math.Round(blended))),
		Confidence: latest.Confidence * (1 - frac),
		Provenance: domain.EnergyUserReported,
		ObservedAt: latest.ObservedAt,
	}
}

// BaselineAt returns the circadian baseline for a given instant. The LTS
// uses it for peak-hour alignment scoring.
func (e *Estimator) BaselineAt(t time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.curve[t.Hour()%24]
}
