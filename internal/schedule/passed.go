package schedule

import "time"

// HasScheduledTimePassed reports whether the wall-clock time schedule has been
// reached on ref's day. A nil schedule means post immediately. Empty, malformed
// or out-of-range values are never considered passed.
func HasScheduledTimePassed(schedule *string, ref time.Time) bool {
	if schedule == nil {
		return true
	}
	clock, err := ParseClock(*schedule)
	if err != nil {
		return false
	}
	current := ref.Hour()*3600 + ref.Minute()*60 + ref.Second()
	return current >= clock.SecondOfDay()
}
