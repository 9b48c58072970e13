package disruption

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tempohq/tempo/internal/domain"
	"github.com/tempohq/tempo/internal/infra/store"
)

var testNow = time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)

func newTestClassifier(t *testing.T, st *store.Store, profile domain.Profile) *Classifier {
	t.Helper()
	if st == nil {
		st = store.New(nil, zerolog.Nop())
	}
	return New(DefaultConfig(), st, profile, nil, zerolog.Nop())
}

func event(delta int, affected ...string) domain.ContextChangeEvent {
	return domain.ContextChangeEvent{
		ID:              "ev-1",
		Source:          "calendar",
		ChangeType:      "meeting_overrun",
		DeltaMinutes:    delta,
		AffectedTaskIDs: affected,
		Timestamp:       testNow,
	}
}

func mustClassify(t *testing.T, c *Classifier, ev domain.ContextChangeEvent) *domain.DisruptionEvent {
	t.Helper()
	out, err := c.Classify(ev)
	if err != nil {
		t.Fatalf("Classify error: %v", err)
	}
	if out == nil {
		t.Fatal("Classify dropped the event")
	}
	return out
}

// ─── Severity Rules ─────────────────────────────────────────────────────────

func TestClassifier_SeverityByMagnitude(t *testing.T) {
	c := newTestClassifier(t, nil, nil)

	tests := []struct {
		delta int
		want  domain.Severity
	}{
		{-10, domain.SeverityMinor},
		{-29, domain.SeverityMinor},
		{-30, domain.SeverityMajor},
		{-89, domain.SeverityMajor},
		{-90, domain.SeverityCritical},
		{-240, domain.SeverityCritical},
		{45, domain.SeverityMajor},  // magnitude rules are sign-agnostic
		{120, domain.SeverityCritical},
	}
	for _, tt := range tests {
		got := mustClassify(t, c, event(tt.delta))
		if got.Severity != tt.want {
			t.Errorf("Classify(delta=%d) severity = %s, want %s", tt.delta, got.Severity, tt.want)
		}
	}
}

func TestClassifier_SeverityMonotonicInMagnitude(t *testing.T) {
	c := newTestClassifier(t, nil, nil)
	prev := domain.SeverityMinor
	for delta := 5; delta <= 180; delta += 5 {
		got := mustClassify(t, c, event(-delta))
		if got.Severity < prev {
			t.Fatalf("severity decreased at delta=%d: %s after %s", delta, got.Severity, prev)
		}
		prev = got.Severity
	}
}

func TestClassifier_BenignDropped(t *testing.T) {
	c := newTestClassifier(t, nil, nil)

	for _, delta := range []int{0, 2, -4} {
		out, err := c.Classify(event(delta))
		if err != nil {
			t.Fatalf("Classify(delta=%d) error: %v", delta, err)
		}
		if out != nil {
			t.Errorf("Classify(delta=%d) = %+v, want dropped", delta, out)
		}
	}

	// Exactly at the threshold is classified, not dropped.
	if out := mustClassify(t, c, event(-5)); out.Severity != domain.SeverityMinor {
		t.Errorf("Classify(delta=-5) severity = %s, want MINOR", out.Severity)
	}
}

func TestClassifier_P0ImpactIsCritical(t *testing.T) {
	st := store.New(nil, zerolog.Nop())
	st.Upsert(domain.Task{ID: "urgent", Priority: domain.P0Urgent, DurationMinutes: 30})
	c := newTestClassifier(t, st, nil)

	// Magnitude alone would be Minor.
	got := mustClassify(t, c, event(-10, "urgent"))
	if got.Severity != domain.SeverityCritical {
		t.Errorf("severity with P0 impact = %s, want CRITICAL", got.Severity)
	}
}

func TestClassifier_CascadeRules(t *testing.T) {
	st := store.New(nil, zerolog.Nop())
	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		st.Upsert(domain.Task{ID: id, Priority: domain.P2Normal, DurationMinutes: 30})
		st.Transition(id, domain.TaskScheduled)
	}
	c := newTestClassifier(t, st, nil)

	// Two scheduled tasks affected → Major, four → Critical (cascade > 3).
	if got := mustClassify(t, c, event(-10, "a", "b")); got.Severity != domain.SeverityMajor {
		t.Errorf("two affected: severity = %s, want MAJOR", got.Severity)
	}
	if got := mustClassify(t, c, event(-10, ids...)); got.Severity != domain.SeverityCritical {
		t.Errorf("four affected: severity = %s, want CRITICAL", got.Severity)
	}
}

func TestClassifier_UnknownTaskIDsTolerated(t *testing.T) {
	c := newTestClassifier(t, nil, nil)
	got := mustClassify(t, c, event(-40, "nobody-knows-this-id"))
	if got.Severity != domain.SeverityMajor {
		t.Errorf("severity = %s, want MAJOR from magnitude alone", got.Severity)
	}
}

func TestClassifier_StampsClassificationTime(t *testing.T) {
	c := newTestClassifier(t, nil, nil)
	c.SetClock(func() time.Time { return testNow })

	// An event delivered late is stamped with the classifier's own clock,
	// not the event's origin time.
	ev := event(-45)
	ev.Timestamp = testNow.Add(-time.Hour)

	got := mustClassify(t, c, ev)
	if !got.ClassifiedAt.Equal(testNow) {
		t.Errorf("ClassifiedAt = %v, want %v", got.ClassifiedAt, testNow)
	}
}

// ─── Malformed Events ───────────────────────────────────────────────────────

func TestClassifier_Malformed(t *testing.T) {
	c := newTestClassifier(t, nil, nil)

	tests := []struct {
		name string
		ev   domain.ContextChangeEvent
	}{
		{"missing id", domain.ContextChangeEvent{ChangeType: "x", DeltaMinutes: 60, Timestamp: testNow}},
		{"missing change type", domain.ContextChangeEvent{ID: "e", DeltaMinutes: 60, Timestamp: testNow}},
		{"zero timestamp", domain.ContextChangeEvent{ID: "e", ChangeType: "x", DeltaMinutes: 60}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := c.Classify(tt.ev)
			if !errors.Is(err, domain.ErrMalformedEvent) {
				t.Errorf("error = %v, want ErrMalformedEvent", err)
			}
			if out != nil {
				t.Errorf("out = %+v, want nil", out)
			}
		})
	}
}

// ─── Personalization ────────────────────────────────────────────────────────

type shiftProfile struct {
	domain.DefaultProfile
	shift map[string]int
}

func (p shiftProfile) SeverityAdjustment(changeType string) int { return p.shift[changeType] }

func TestClassifier_PersonalizationShiftsAfterThresholds(t *testing.T) {
	up := shiftProfile{shift: map[string]int{"meeting_overrun": +1}}
	down := shiftProfile{shift: map[string]int{"meeting_overrun": -1}}

	// delta -30 computes Major; the profile shifts it one level either way.
	if got := mustClassify(t, newTestClassifier(t, nil, up), event(-30)); got.Severity != domain.SeverityCritical {
		t.Errorf("upshift: severity = %s, want CRITICAL", got.Severity)
	}
	if got := mustClassify(t, newTestClassifier(t, nil, down), event(-30)); got.Severity != domain.SeverityMinor {
		t.Errorf("downshift: severity = %s, want MINOR", got.Severity)
	}
}

func TestClassifier_PersonalizationClamped(t *testing.T) {
	up := shiftProfile{shift: map[string]int{"meeting_overrun": +1}}
	down := shiftProfile{shift: map[string]int{"meeting_overrun": -1}}

	// Critical + 1 stays Critical; Minor − 1 stays Minor.
	if got := mustClassify(t, newTestClassifier(t, nil, up), event(-120)); got.Severity != domain.SeverityCritical {
		t.Errorf("clamp high: severity = %s, want CRITICAL", got.Severity)
	}
	if got := mustClassify(t, newTestClassifier(t, nil, down), event(-10)); got.Severity != domain.SeverityMinor {
		t.Errorf("clamp low: severity = %s, want MINOR", got.Severity)
	}
}

// ─── Audit ──────────────────────────────────────────────────────────────────

type recordingAudit struct {
	events []domain.DisruptionEvent
	err    error
}

func (a *recordingAudit) AppendDisruption(ev domain.DisruptionEvent) error {
	a.events = append(a.events, ev)
	return a.err
}

func TestClassifier_AuditTrail(t *testing.T) {
	audit := &recordingAudit{}
	st := store.New(nil, zerolog.Nop())
	c := New(DefaultConfig(), st, nil, audit, zerolog.Nop())

	out := mustClassify(t, c, event(-45))
	if len(audit.events) != 1 {
		t.Fatalf("audit received %d events, want 1", len(audit.events))
	}
	if audit.events[0].ID != out.ID || audit.events[0].EventID != "ev-1" {
		t.Errorf("audited event = %+v", audit.events[0])
	}
	if out.ID == "" {
		t.Error("disruption ID not assigned")
	}
	if out.Cause == "" {
		t.Error("cause summary empty")
	}
}

func TestClassifier_AuditFailureIsNotFatal(t *testing.T) {
	audit := &recordingAudit{err: errors.New("disk full")}
	st := store.New(nil, zerolog.Nop())
	c := New(DefaultConfig(), st, nil, audit, zerolog.Nop())

	if out := mustClassify(t, c, event(-45)); out.Severity != domain.SeverityMajor {
		t.Errorf("severity = %s, want MAJOR despite audit failure", out.Severity)
	}
}
