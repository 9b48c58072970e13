package energy

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tempohq/tempo/internal/domain"
)

// 10:00 local: DefaultCurve morning peak, baseline 5.
var testNow = time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

func newTestEstimator(t *testing.T) (*Estimator, *time.Time) {
	t.Helper()
	clock := testNow
	e := New(DefaultConfig(), nil, zerolog.Nop())
	e.SetClock(func() time.Time { return clock })
	return e, &clock
}

// ─── Baseline ───────────────────────────────────────────────────────────────

func TestEstimator_NoReadingFallsBackToCurve(t *testing.T) {
	e, clock := newTestEstimator(t)

	got := e.Current()
	if got.Level != 5 {
		t.Errorf("Level at 10:00 = %d, want 5", got.Level)
	}
	if got.Provenance != domain.EnergyTimeBased {
		t.Errorf("Provenance = %s, want time_based", got.Provenance)
	}
	if got.Confidence != 0.6 {
		t.Errorf("Confidence = %v, want 0.6", got.Confidence)
	}

	// Overnight the curve bottoms out.
	*clock = time.Date(2026, 8, 26, 3, 0, 0, 0, time.UTC)
	if got := e.Current(); got.Level != 1 {
		t.Errorf("Level at 03:00 = %d, want 1", got.Level)
	}
}

func TestEstimator_BaselineAt(t *testing.T) {
	e, _ := newTestEstimator(t)
	tests := []struct {
		hour int
		want int
	}{
		{3, 1},
		{10, 5},
		{12, 3},
		{15, 5},
		{22, 1},
	}
	for _, tt := range tests {
		at := time.Date(2026, 8, 25, tt.hour, 30, 0, 0, time.UTC)
		if got := e.BaselineAt(at); got != tt.want {
			t.Errorf("BaselineAt(%02d:30) = %d, want %d", tt.hour, got, tt.want)
		}
	}
}

func TestEstimator_SetCurve(t *testing.T) {
	e, _ := newTestEstimator(t)

	flat := make([]int, 24)
	for i := range flat {
		flat[i] = 2
	}
	e.SetCurve(flat)
	if got := e.Current().Level; got != 2 {
		t.Errorf("Level after SetCurve = %d, want 2", got)
	}

	// Wrong-length curves are ignored.
	e.SetCurve([]int{5, 5, 5})
	if got := e.Current().Level; got != 2 {
		t.Errorf("Level after bad SetCurve = %d, want 2", got)
	}
}

// ─── User Reports + Decay ───────────────────────────────────────────────────

// flatten pins the baseline so decay tests blend toward a constant.
func flatten(e *Estimator, level int) {
	curve := make([]int, 24)
	for i := range curve {
		curve[i] = level
	}
	e.SetCurve(curve)
}

func TestEstimator_UserReportDecaysTowardBaseline(t *testing.T) {
	e, clock := newTestEstimator(t)
	flatten(e, 5)

	// User reports 1 against a level-5 baseline.
	e.Update(domain.EnergyLevel{Level: 1, Provenance: domain.EnergyUserReported})

	tests := []struct {
		elapsed        time.Duration
		wantLevel      int
		wantConfidence float64
	}{
		{0, 1, 1.0},
		{30 * time.Minute, 2, 0.75},  // 1 + 4·0.25 = 2.0
		{time.Hour, 3, 0.5},          // halfway
		{90 * time.Minute, 4, 0.25},  // 1 + 4·0.75 = 4.0
	}
	for _, tt := range tests {
		*clock = testNow.Add(tt.elapsed)
		got := e.Current()
		if got.Level != tt.wantLevel {
			t.Errorf("Level after %v = %d, want %d", tt.elapsed, got.Level, tt.wantLevel)
		}
		if math.Abs(got.Confidence-tt.wantConfidence) > 1e-9 {
			t.Errorf("Confidence after %v = %v, want %v", tt.elapsed, got.Confidence, tt.wantConfidence)
		}
		if got.Provenance != domain.EnergyUserReported {
			t.Errorf("Provenance after %v = %s, want user_reported", tt.elapsed, got.Provenance)
		}
	}
}

func TestEstimator_UserReportExpiresAfterWindow(t *testing.T) {
	e, clock := newTestEstimator(t)
	flatten(e, 5)
	e.Update(domain.EnergyLevel{Level: 1, Provenance: domain.EnergyUserReported})

	*clock = testNow.Add(2 * time.Hour)
	got := e.Current()
	if got.Level != 5 || got.Provenance != domain.EnergyTimeBased {
		t.Errorf("after full window: %+v, want baseline 5 time_based", got)
	}
}

func TestEstimator_NewReportSupersedesOld(t *testing.T) {
	e, clock := newTestEstimator(t)
	e.Update(domain.EnergyLevel{Level: 1, Provenance: domain.EnergyUserReported})

	*clock = testNow.Add(time.Hour)
	e.Update(domain.EnergyLevel{Level: 4, Provenance: domain.EnergyUserReported})

	// The fresh report restarts the decay clock at full confidence.
	got := e.Current()
	if got.Level != 4 || got.Confidence != 1.0 {
		t.Errorf("after fresh report: %+v, want level 4 at confidence 1.0", got)
	}
}

func TestEstimator_InferredUsedAsIsUntilStale(t *testing.T) {
	e, clock := newTestEstimator(t)
	e.Update(domain.EnergyLevel{Level: 2, Confidence: 0.8, Provenance: domain.EnergyInferred})

	*clock = testNow.Add(90 * time.Minute)
	got := e.Current()
	if got.Level != 2 || got.Confidence != 0.8 {
		t.Errorf("inferred reading inside window: %+v, want level 2 at 0.8", got)
	}

	*clock = testNow.Add(3 * time.Hour)
	if got := e.Current(); got.Provenance != domain.EnergyTimeBased {
		t.Errorf("stale inferred reading: %+v, want time_based fallback", got)
	}
}

func TestEstimator_UpdateClampsAndDefaults(t *testing.T) {
	e, _ := newTestEstimator(t)

	got := e.Update(domain.EnergyLevel{Level: 9, Confidence: 7})
	if got.Level != 5 {
		t.Errorf("Level = %d, want clamped to 5", got.Level)
	}
	if got.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want defaulted to 1.0", got.Confidence)
	}
	if got.Provenance != domain.EnergyInferred {
		t.Errorf("Provenance = %s, want inferred default", got.Provenance)
	}
	if got.ObservedAt.IsZero() {
		t.Error("ObservedAt not stamped")
	}
}

// ─── Persistence ────────────────────────────────────────────────────────────

type recordingPersister struct {
	saved []domain.EnergyLevel
	err   error
}

func (p *recordingPersister) SaveEnergyReport(e domain.EnergyLevel) error {
	p.saved = append(p.saved, e)
	return p.err
}

func TestEstimator_PersistsUserReportsOnly(t *testing.T) {
	p := &recordingPersister{}
	e := New(DefaultConfig(), p, zerolog.Nop())
	e.SetClock(func() time.Time { return testNow })

	e.Update(domain.EnergyLevel{Level: 3, Provenance: domain.EnergyInferred})
	e.Update(domain.EnergyLevel{Level: 2, Provenance: domain.EnergyUserReported})

	if len(p.saved) != 1 {
		t.Fatalf("persisted %d reports, want 1", len(p.saved))
	}
	if p.saved[0].Level != 2 {
		t.Errorf("persisted level = %d, want 2", p.saved[0].Level)
	}
}

func TestEstimator_PersistFailureIsNotFatal(t *testing.T) {
	p := &recordingPersister{err: errors.New("disk full")}
	e := New(DefaultConfig(), p, zerolog.Nop())
	e.SetClock(func() time.Time { return testNow })

	got := e.Update(domain.EnergyLevel{Level: 2, Provenance: domain.EnergyUserReported})
	if got.Level != 2 {
		t.Errorf("Update with failing persister = %+v", got)
	}
	if e.Current().Level != 2 {
		t.Errorf("Current() = %d after persist failure, want 2", e.Current().Level)
	}
}
