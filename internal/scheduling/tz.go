package scheduling

import (
	"fmt"
	"time"
)

// LocalTime is a wall-clock time of day in a facility's timezone.
type LocalTime struct {
	Hour   int
	Minute int
}

// ParseLocalTime parses "15:04" formatted input.
func ParseLocalTime(s string) (LocalTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return LocalTime{}, fmt.Errorf("parse local time %q: %w", s, err)
	}
	return LocalTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (lt LocalTime) String() string {
	return fmt.Sprintf("%02d:%02d", lt.Hour, lt.Minute)
}

// Before reports whether lt is earlier in the day than other.
func (lt LocalTime) Before(other LocalTime) bool {
	if lt.Hour != other.Hour {
		return lt.Hour < other.Hour
	}
	return lt.Minute < other.Minute
}

// LocationOf resolves a facility's timezone, falling back to UTC when the
// zone name is empty or unknown.
func LocationOf(f *Facility) *time.Location {
	if f == nil || f.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DayWindow anchors opening and closing wall-clock times on the given date
// in loc and returns the corresponding absolute UTC instants.
func DayWindow(date time.Time, opening, closing LocalTime, loc *time.Location) (start, end time.Time) {
	y, m, d := date.Date()
	start = time.Date(y, m, d, opening.Hour, opening.Minute, 0, 0, loc).UTC()
	end = time.Date(y, m, d, closing.Hour, closing.Minute, 0, 0, loc).UTC()
	return start, end
}
