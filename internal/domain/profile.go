package domain

// Profile is the boundary to the behavioral-profiling subsystem. The
// engine consumes these signals as opaque numbers; it never computes them.
// A nil or default profile disables personalization without changing any
// scheduling logic.
type Profile interface {
	// SeverityAdjustment shifts a classified disruption severity by
	// -1, 0, or +1 for the given change type ("is this user typically
	// affected by meeting overruns"). Applied after threshold
	// classification, clamped to the valid range.
	SeverityAdjustment(changeType string) int

	// EstimationBias is a duration multiplier; >1.0 means the user
	// underestimates how long tasks take.
	EstimationBias() float64

	// PeakHours returns the hours (0–23) at which the user does their
	// best high-energy work.
	PeakHours() []int

	// EnergyCurve returns the 24-element circadian baseline (1–5 per
	// hour), or nil to keep the engine default.
	EnergyCurve() []int
}

// DefaultProfile is the no-op Profile: no severity shift, no bias, the
// stock peak hours and energy curve.
type DefaultProfile struct{}

func (DefaultProfile) SeverityAdjustment(string) int { return 0 }
func (DefaultProfile) EstimationBias() float64       { return 1.0 }
func (DefaultProfile) PeakHours() []int              { return []int{9, 10, 14, 15} }
func (DefaultProfile) EnergyCurve() []int            { return nil }
