package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // plan timezones must resolve on minimal hosts
)

// ErrInvalidClock is returned for wall-clock strings that are empty, malformed or out of range.
var ErrInvalidClock = errors.New("invalid time of day")

var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?$`)

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
	Second int
}

// ParseClock accepts H:MM, HH:MM and HH:MM:SS.
func ParseClock(value string) (Clock, error) {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}

	var c Clock
	c.Hour, _ = strconv.Atoi(m[1])
	c.Minute, _ = strconv.Atoi(m[2])
	if m[3] != "" {
		c.Second, _ = strconv.Atoi(m[3])
	}
	if c.Hour > 23 || c.Minute > 59 || c.Second > 59 {
		return Clock{}, fmt.Errorf("%w: %q out of range", ErrInvalidClock, value)
	}
	return c, nil
}

// MinuteOfDay returns minutes since midnight, ignoring seconds.
func (c Clock) MinuteOfDay() int {
	return c.Hour*60 + c.Minute
}

// SecondOfDay returns seconds since midnight.
func (c Clock) SecondOfDay() int {
	return c.Hour*3600 + c.Minute*60 + c.Second
}

// On returns the instant the clock reads c on ref's calendar day in ref's location.
func (c Clock) On(ref time.Time) time.Time {
	y, mo, d := ref.Date()
	return time.Date(y, mo, d, c.Hour, c.Minute, c.Second, 0, ref.Location())
}

// String formats the clock as HH:MM:SS.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// LoadLocation resolves a plan timezone. An empty name means UTC.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// LocalDate returns the YYYY-MM-DD calendar date of now in the named timezone.
func LocalDate(now time.Time, timezone string) (string, error) {
	loc, err := LoadLocation(timezone)
	if err != nil {
		return "", err
	}
	return now.In(loc).Format(time.DateOnly), nil
}
