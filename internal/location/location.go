// Package location works out the observer's timezone and a display label
// for it.
package location

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"opposite-clock/internal/clock"

	"github.com/rs/zerolog/log"
)

// UnknownLabel is shown when no label can be derived from the timezone.
const UnknownLabel = "Unknown"

// Status messages shown while resolving.
const (
	StatusDetected = "Location detected"
	StatusFallback = "Using system timezone"
)

// Observer is the viewer's location. It is created once and not mutated.
type Observer struct {
	Label    string `json:"label"`
	Timezone string `json:"timezone"`
	Degraded bool   `json:"degraded"`
}

// Status is the transient status message for this observer.
func (o Observer) Status() string {
	if o.Degraded {
		return StatusFallback
	}
	return StatusDetected
}

// DetectFunc returns the platform's timezone identifier.
type DetectFunc func() (string, error)

// Resolver resolves the observer location.
type Resolver struct {
	override string
	detect   DetectFunc
}

// NewResolver builds a resolver. A non-empty override wins over detection.
func NewResolver(override string) *Resolver {
	return &Resolver{
		override: strings.TrimSpace(override),
		detect:   DetectPlatform,
	}
}

// WithDetector replaces platform detection, mostly for tests.
func (r *Resolver) WithDetector(fn DetectFunc) *Resolver {
	r.detect = fn
	return r
}

// Resolve never fails. A failed or invalid detection yields UnknownLabel
// with the UTC default; a label that cannot be derived yields UnknownLabel
// with the detected timezone kept.
func (r *Resolver) Resolve() Observer {
	tz, ok := r.timezone()
	if !ok {
		return Observer{Label: UnknownLabel, Timezone: tz, Degraded: true}
	}

	label, err := Label(tz)
	if err != nil {
		log.Warn().Err(err).Str("timezone", tz).Msg("location label derivation failed")
		return Observer{Label: UnknownLabel, Timezone: tz, Degraded: true}
	}

	log.Info().Str("label", label).Str("timezone", tz).Msg("location detected")
	return Observer{Label: label, Timezone: tz}
}

// timezone returns a loadable identifier. ok is false when detection failed
// and tz is the default.
func (r *Resolver) timezone() (string, bool) {
	if r.override != "" {
		if validZone(r.override) {
			return r.override, true
		}
		log.Warn().Str("timezone", r.override).Msg("configured timezone is invalid, detecting instead")
	}
	if r.detect == nil {
		return defaultTimezone, true
	}

	tz, err := r.detect()
	tz = strings.TrimSpace(tz)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("platform timezone detection failed")
	case tz == "":
		log.Warn().Msg("platform timezone detection returned nothing")
	case !validZone(tz):
		log.Warn().Str("timezone", tz).Msg("detected timezone is invalid")
	default:
		return tz, true
	}
	return defaultTimezone, false
}

func validZone(tz string) bool {
	_, err := clock.Location(tz)
	return err == nil
}

// Label derives a display name from the last segment of tz with
// underscores replaced: "America/Los_Angeles" -> "Los Angeles".
func Label(tz string) (string, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return "", errors.New("empty timezone identifier")
	}
	idx := strings.LastIndex(tz, "/")
	segment := tz[idx+1:]
	if segment == "" {
		return "", fmt.Errorf("timezone %q has no city segment", tz)
	}
	return strings.ReplaceAll(segment, "_", " "), nil
}

const (
	defaultTimezone = "UTC"
	zoneinfoMarker  = "zoneinfo/"
)

// DetectPlatform reports the host timezone identifier. It checks, in order,
// TZ, the /etc/localtime symlink, /etc/timezone and time.Local, skipping any
// source whose value is not a loadable zone.
func DetectPlatform() (string, error) {
	return detectFrom(os.Getenv("TZ"), "/etc/localtime", "/etc/timezone")
}

func detectFrom(envTZ, localtimePath, timezonePath string) (string, error) {
	if tz := strings.TrimPrefix(strings.TrimSpace(envTZ), ":"); tz != "" && validZone(tz) {
		return tz, nil
	}

	if target, err := filepath.EvalSymlinks(localtimePath); err == nil {
		if idx := strings.LastIndex(target, zoneinfoMarker); idx >= 0 {
			if tz := target[idx+len(zoneinfoMarker):]; validZone(tz) {
				return tz, nil
			}
		}
	}

	if data, err := os.ReadFile(timezonePath); err == nil {
		if tz := strings.TrimSpace(string(data)); tz != "" && validZone(tz) {
			return tz, nil
		}
	}

	if name := time.Local.String(); validZone(name) {
		return name, nil
	}

	return "", errors.New("no platform timezone found")
}
