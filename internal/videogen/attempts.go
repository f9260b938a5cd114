package videogen

import "github.com/reelcast/autopilot/internal/modes"

// DefaultAttemptsPerModel is how many tries each model gets.
const DefaultAttemptsPerModel = 2

// BuildAttemptPlan lists the (provider, model) pairs to try in order: the
// primary repeated perModel times, then the stable fallback repeated perModel
// times unless it is the primary.
func BuildAttemptPlan(primary, stable modes.Target, perModel int) []modes.Target {
	if perModel <= 0 {
		perModel = DefaultAttemptsPerModel
	}

	plan := make([]modes.Target, 0, perModel*2)
	for i := 0; i < perModel; i++ {
		plan = append(plan, primary)
	}
	if stable != primary && stable.Provider != "" && stable.Model != "" {
		for i := 0; i < perModel; i++ {
			plan = append(plan, stable)
		}
	}
	return plan
}
