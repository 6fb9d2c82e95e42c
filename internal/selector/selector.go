// Package selector picks a catalog city in the opposite day/night phase
// from the observer.
package selector

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"opposite-clock/internal/catalog"
	"opposite-clock/internal/clock"
)

// ErrEmptyCatalog is returned when there is nothing to pick from.
var ErrEmptyCatalog = errors.New("catalog is empty")

// Rand is the randomness the selector needs. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Pick is the outcome of a selection. Opposite is false only when no city
// was in the opposite phase and the whole catalog was used instead.
type Pick struct {
	City       catalog.City
	Phase      clock.Phase
	Opposite   bool
	Candidates int
}

// Selector draws opposite cities. It holds no memory between calls.
type Selector struct {
	rng Rand
}

// New returns a selector. A nil rng uses the process-wide source.
func New(rng Rand) *Selector {
	if rng == nil {
		rng = globalRand{}
	}
	return &Selector{rng: rng}
}

// PickOpposite returns a city whose phase at now differs from the
// observer's. If none exists it falls back to any city in cities. An
// invalid timezone, for the observer or any city, is returned as an error.
func (s *Selector) PickOpposite(observerTZ string, now time.Time, cities []catalog.City) (catalog.City, error) {
	pick, err := s.Pick(observerTZ, now, cities)
	if err != nil {
		return catalog.City{}, err
	}
	return pick.City, nil
}

// Pick is PickOpposite with the selection details.
func (s *Selector) Pick(observerTZ string, now time.Time, cities []catalog.City) (Pick, error) {
	if len(cities) == 0 {
		return Pick{}, ErrEmptyCatalog
	}

	observerIsDay, err := clock.IsDaytime(observerTZ, now)
	if err != nil {
		return Pick{}, fmt.Errorf("observer: %w", err)
	}

	candidates := make([]catalog.City, 0, len(cities))
	phases := make([]bool, len(cities))
	for i, c := range cities {
		day, err := clock.IsDaytime(c.Timezone, now)
		if err != nil {
			return Pick{}, fmt.Errorf("city %s: %w", c.Name, err)
		}
		phases[i] = day
		if day != observerIsDay {
			candidates = append(candidates, c)
		}
	}

	if len(candidates) > 0 {
		city := candidates[s.rng.IntN(len(candidates))]
		return Pick{
			City:       city,
			Phase:      phaseFor(!observerIsDay),
			Opposite:   true,
			Candidates: len(candidates),
		}, nil
	}

	i := s.rng.IntN(len(cities))
	return Pick{
		City:       cities[i],
		Phase:      phaseFor(phases[i]),
		Opposite:   false,
		Candidates: 0,
	}, nil
}

func phaseFor(day bool) clock.Phase {
	if day {
		return clock.Day
	}
	return clock.Night
}
