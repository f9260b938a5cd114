// Package schedule decides when plans are due and when posts may go out.
package schedule

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/reelcast/autopilot/internal/models"
)

// DefaultWindow is the tolerance around a daily trigger time.
const DefaultWindow = 15 * time.Minute

const minutesPerDay = 24 * 60

// Evaluator selects the plans due at a given instant.
type Evaluator struct {
	window time.Duration
	logger *slog.Logger
}

// NewEvaluator creates an Evaluator. A non-positive window falls back to DefaultWindow.
func NewEvaluator(window time.Duration, logger *slog.Logger) *Evaluator {
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{window: window, logger: logger}
}

// EvaluateDuePlans returns the IDs of enabled plans that are due at now.
// A plan whose trigger cannot be evaluated is logged and skipped.
func (e *Evaluator) EvaluateDuePlans(now time.Time, plans []models.Plan) []uint {
	var due []uint
	for _, plan := range plans {
		if !plan.Enabled {
			continue
		}
		ok, err := e.IsDue(now, plan)
		if err != nil {
			e.logger.Warn("Skipping plan with invalid trigger",
				"plan_id", plan.ID,
				"trigger_mode", plan.TriggerMode,
				"trigger_time", plan.TriggerTime,
				"timezone", plan.Timezone,
				"error", err,
			)
			continue
		}
		if ok {
			due = append(due, plan.ID)
		}
	}
	return due
}

// IsDue evaluates a single plan's trigger at now.
func (e *Evaluator) IsDue(now time.Time, plan models.Plan) (bool, error) {
	switch plan.TriggerMode {
	case models.TriggerModeTimeBased, models.TriggerModeImmediate:
		return true, nil
	case models.TriggerModeDaily, "":
	default:
		return false, fmt.Errorf("unknown trigger mode %q", plan.TriggerMode)
	}

	trigger, err := ParseClock(plan.TriggerTime)
	if err != nil {
		return false, err
	}
	loc, err := LoadLocation(plan.Timezone)
	if err != nil {
		return false, err
	}

	local := now.In(loc)
	current := local.Hour()*60 + local.Minute()
	return CircularMinuteDistance(current, trigger.MinuteOfDay()) <= int(e.window/time.Minute), nil
}

// CircularMinuteDistance is the distance between two minutes-of-day across midnight.
func CircularMinuteDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	d %= minutesPerDay
	if minutesPerDay-d < d {
		return minutesPerDay - d
	}
	return d
}
