// Package clock classifies instants as day or night in a named timezone and
// renders wall-clock strings for them.
package clock

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// Daytime is the half-open local hour range [DayStartHour, DayEndHour).
const (
	DayStartHour = 6
	DayEndHour   = 18
)

// ErrInvalidTimezone is returned for identifiers the zone database does not
// know. Callers must not swap in another zone.
var ErrInvalidTimezone = errors.New("invalid timezone")

// Phase is the day/night classification of a local hour.
type Phase int

const (
	Night Phase = iota
	Day
)

func (p Phase) String() string {
	if p == Day {
		return "day"
	}
	return "night"
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Opposite returns the other phase.
func (p Phase) Opposite() Phase {
	if p == Day {
		return Night
	}
	return Day
}

// Location loads tz. Empty and "Local" are rejected because LoadLocation maps
// them to UTC and the host zone respectively.
func Location(tz string) (*time.Location, error) {
	name := strings.TrimSpace(tz)
	if name == "" || name == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: load timezone %s: %v", ErrInvalidTimezone, tz, err)
	}
	return loc, nil
}

// LocalHour returns the 0-23 hour of now as seen in tz.
func LocalHour(tz string, now time.Time) (int, error) {
	loc, err := Location(tz)
	if err != nil {
		return 0, err
	}
	return now.In(loc).Hour(), nil
}

// IsDaytimeHour reports whether hour falls in [6, 18).
func IsDaytimeHour(hour int) bool {
	return hour >= DayStartHour && hour < DayEndHour
}

// IsDaytime reports whether it is daytime in tz at now.
func IsDaytime(tz string, now time.Time) (bool, error) {
	hour, err := LocalHour(tz, now)
	if err != nil {
		return false, err
	}
	return IsDaytimeHour(hour), nil
}

// PhaseOf is IsDaytime expressed as a Phase.
func PhaseOf(tz string, now time.Time) (Phase, error) {
	day, err := IsDaytime(tz, now)
	if err != nil {
		return Night, err
	}
	if day {
		return Day, nil
	}
	return Night, nil
}

// FormattedTime renders now in tz on a 12-hour clock, e.g. "3:45 PM".
func FormattedTime(tz string, now time.Time) (string, error) {
	loc, err := Location(tz)
	if err != nil {
		return "", err
	}
	return now.In(loc).Format("3:04 PM"), nil
}
