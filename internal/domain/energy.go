package domain

import "time"

// EnergyProvenance tags where an energy reading came from.
type EnergyProvenance string

const (
	EnergyInferred     EnergyProvenance = "inferred"      // behavioral signals
	EnergyUserReported EnergyProvenance = "user_reported" // explicit user input
	EnergyTimeBased    EnergyProvenance = "time_based"    // circadian baseline
)

// EnergyLevel is the engine's view of the user's current energy.
// Each scheduling pass receives an immutable copy for its duration; a new
// reading supersedes the previous one.
type EnergyLevel struct {
	Level      int              `json:"level"`      // 1–5
	Confidence float64          `json:"confidence"` // [0, 1]
	Provenance EnergyProvenance `json:"provenance"`
	ObservedAt time.Time        `json:"observed_at"`
}

// ClampEnergy forces a raw level into the valid 1–5 range.
func ClampEnergy(level int) int {
	if level < 1 {
		return 1
	}
	if level > 5 {
		return 5
	}
	return level
}
