// Package catalog holds the city records opposite cities are drawn from.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"opposite-clock/internal/clock"

	"gopkg.in/yaml.v3"
)

// ErrInvalidCity marks a catalog entry that cannot be used.
var ErrInvalidCity = errors.New("invalid city")

// City is a catalog entry. Timezone is an IANA identifier.
type City struct {
	Name     string `json:"name" yaml:"name"`
	Timezone string `json:"timezone" yaml:"timezone"`
	Country  string `json:"country" yaml:"country"`
}

// Label renders the destination timezone line, e.g. "Japan (Asia/Tokyo)".
func (c City) Label() string {
	return fmt.Sprintf("%s (%s)", c.Country, c.Timezone)
}

// Default returns the reference catalog of 20 cities.
func Default() []City {
	return []City{
		{Name: "Tokyo", Timezone: "Asia/Tokyo", Country: "Japan"},
		{Name: "Sydney", Timezone: "Australia/Sydney", Country: "Australia"},
		{Name: "Dubai", Timezone: "Asia/Dubai", Country: "UAE"},
		{Name: "Mumbai", Timezone: "Asia/Kolkata", Country: "India"},
		{Name: "London", Timezone: "Europe/London", Country: "UK"},
		{Name: "Paris", Timezone: "Europe/Paris", Country: "France"},
		{Name: "New York", Timezone: "America/New_York", Country: "USA"},
		{Name: "Los Angeles", Timezone: "America/Los_Angeles", Country: "USA"},
		{Name: "Chicago", Timezone: "America/Chicago", Country: "USA"},
		{Name: "Mexico City", Timezone: "America/Mexico_City", Country: "Mexico"},
		{Name: "São Paulo", Timezone: "America/Sao_Paulo", Country: "Brazil"},
		{Name: "Buenos Aires", Timezone: "America/Argentina/Buenos_Aires", Country: "Argentina"},
		{Name: "Singapore", Timezone: "Asia/Singapore", Country: "Singapore"},
		{Name: "Hong Kong", Timezone: "Asia/Hong_Kong", Country: "Hong Kong"},
		{Name: "Seoul", Timezone: "Asia/Seoul", Country: "South Korea"},
		{Name: "Bangkok", Timezone: "Asia/Bangkok", Country: "Thailand"},
		{Name: "Istanbul", Timezone: "Europe/Istanbul", Country: "Turkey"},
		{Name: "Moscow", Timezone: "Europe/Moscow", Country: "Russia"},
		{Name: "Cairo", Timezone: "Africa/Cairo", Country: "Egypt"},
		{Name: "Johannesburg", Timezone: "Africa/Johannesburg", Country: "South Africa"},
	}
}

// Validate checks every entry has a name and a loadable timezone. A bad
// entry is a data bug, so callers should refuse to start on error.
func Validate(cities []City) error {
	if len(cities) == 0 {
		return fmt.Errorf("%w: catalog is empty", ErrInvalidCity)
	}
	for i, c := range cities {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%w: entry %d has no name", ErrInvalidCity, i)
		}
		if strings.TrimSpace(c.Timezone) == "" {
			return fmt.Errorf("%w: %s has no timezone", ErrInvalidCity, c.Name)
		}
		if _, err := clock.Location(c.Timezone); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidCity, c.Name, err)
		}
	}
	return nil
}

type catalogFile struct {
	Cities []City `yaml:"cities"`
}

// LoadFile reads a YAML catalog of the form:
//
//	cities:
//	  - name: Tokyo
//	    timezone: Asia/Tokyo
//	    country: Japan
func LoadFile(path string) ([]City, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if err := Validate(f.Cities); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return f.Cities, nil
}

// Marshal renders cities in the LoadFile format.
func Marshal(cities []City) ([]byte, error) {
	return yaml.Marshal(catalogFile{Cities: cities})
}

// Status is a city with its phase and wall-clock time at one instant.
type Status struct {
	City      `yaml:",inline"`
	Phase     clock.Phase `json:"phase" yaml:"phase"`
	LocalTime string      `json:"local_time" yaml:"local_time"`
}

// Statuses classifies every city at now.
func Statuses(cities []City, now time.Time) ([]Status, error) {
	out := make([]Status, 0, len(cities))
	for _, c := range cities {
		phase, err := clock.PhaseOf(c.Timezone, now)
		if err != nil {
			return nil, fmt.Errorf("city %s: %w", c.Name, err)
		}
		local, err := clock.FormattedTime(c.Timezone, now)
		if err != nil {
			return nil, fmt.Errorf("city %s: %w", c.Name, err)
		}
		out = append(out, Status{City: c, Phase: phase, LocalTime: local})
	}
	return out, nil
}
