package selector

import (
	"math/rand/v2"
	"testing"
	"time"

	"opposite-clock/internal/catalog"
	"opposite-clock/internal/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 12:00 UTC: Tokyo 21:00, Seoul 21:00, Sydney 23:00 (AEDT), London 12:00,
// Paris 13:00, Cairo 14:00.
var noonUTC = time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)

var nightCities = []catalog.City{
	{Name: "Tokyo", Timezone: "Asia/Tokyo", Country: "Japan"},
	{Name: "Seoul", Timezone: "Asia/Seoul", Country: "South Korea"},
	{Name: "Sydney", Timezone: "Australia/Sydney", Country: "Australia"},
}

var dayCities = []catalog.City{
	{Name: "London", Timezone: "Europe/London", Country: "UK"},
	{Name: "Paris", Timezone: "Europe/Paris", Country: "France"},
	{Name: "Cairo", Timezone: "Africa/Cairo", Country: "Egypt"},
}

func seeded() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestPickOpposite_DayObserverGetsNightCity(t *testing.T) {
	// Observer at 14:00 local, every catalog city at 22:00 local.
	now := time.Date(2026, 2, 15, 14, 0, 0, 0, time.UTC)
	cities := []catalog.City{
		{Name: "A", Timezone: "Etc/GMT-8"},
		{Name: "B", Timezone: "Etc/GMT-8"},
		{Name: "C", Timezone: "Etc/GMT-8"},
	}

	s := New(seeded())
	for i := 0; i < 50; i++ {
		got, err := s.PickOpposite("UTC", now, cities)
		require.NoError(t, err)
		assert.Contains(t, cities, got)
	}
}

func TestPickOpposite_AlwaysOppositeWhenAvailable(t *testing.T) {
	all := append(append([]catalog.City{}, nightCities...), dayCities...)
	s := New(seeded())

	for i := 0; i < 200; i++ {
		got, err := s.PickOpposite("Europe/London", noonUTC, all)
		require.NoError(t, err)
		assert.Contains(t, nightCities, got, "day observer must get a night city")

		got, err = s.PickOpposite("Asia/Tokyo", noonUTC, all)
		require.NoError(t, err)
		assert.Contains(t, dayCities, got, "night observer must get a day city")
	}
}

func TestPickOpposite_DegenerateCatalogFallsBack(t *testing.T) {
	s := New(seeded())

	pick, err := s.Pick("Europe/London", noonUTC, dayCities)
	require.NoError(t, err)
	assert.Contains(t, dayCities, pick.City)
	assert.False(t, pick.Opposite)
	assert.Equal(t, 0, pick.Candidates)
	assert.Equal(t, clock.Day, pick.Phase)
}

func TestPickOpposite_Randomness(t *testing.T) {
	s := New(seeded())
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		got, err := s.PickOpposite("Europe/London", noonUTC, append(append([]catalog.City{}, nightCities...), dayCities...))
		require.NoError(t, err)
		seen[got.Name] = true
	}
	assert.Greater(t, len(seen), 1, "expected more than one distinct city, got %v", seen)
}

func TestPickOpposite_DefaultRand(t *testing.T) {
	s := New(nil)
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		got, err := s.PickOpposite("Europe/London", noonUTC, nightCities)
		require.NoError(t, err)
		seen[got.Name] = true
	}
	assert.Len(t, seen, len(nightCities))
}

type fixedRand struct{ n int }

func (f fixedRand) IntN(int) int { return f.n }

func TestPick_Details(t *testing.T) {
	all := append(append([]catalog.City{}, dayCities...), nightCities...)
	s := New(fixedRand{n: 1})

	pick, err := s.Pick("Europe/London", noonUTC, all)
	require.NoError(t, err)
	assert.Equal(t, "Seoul", pick.City.Name)
	assert.True(t, pick.Opposite)
	assert.Equal(t, 3, pick.Candidates)
	assert.Equal(t, clock.Night, pick.Phase)
}

func TestPickOpposite_Errors(t *testing.T) {
	s := New(seeded())

	_, err := s.PickOpposite("UTC", noonUTC, nil)
	assert.ErrorIs(t, err, ErrEmptyCatalog)

	_, err = s.PickOpposite("Invalid/Zone", noonUTC, nightCities)
	assert.ErrorIs(t, err, clock.ErrInvalidTimezone)

	bad := append([]catalog.City{}, nightCities...)
	bad = append(bad, catalog.City{Name: "Nowhere", Timezone: "Mars/Olympus"})
	_, err = s.PickOpposite("UTC", noonUTC, bad)
	assert.ErrorIs(t, err, clock.ErrInvalidTimezone)
}

func TestPickOpposite_ReferenceCatalog(t *testing.T) {
	s := New(seeded())
	cities := catalog.Default()

	for hour := 0; hour < 24; hour++ {
		now := time.Date(2026, 6, 21, hour, 30, 0, 0, time.UTC)
		observerDay, err := clock.IsDaytime("America/Los_Angeles", now)
		require.NoError(t, err)

		pick, err := s.Pick("America/Los_Angeles", now, cities)
		require.NoError(t, err)
		require.True(t, pick.Opposite, "hour %d: reference catalog should always have an opposite city", hour)

		cityDay, err := clock.IsDaytime(pick.City.Timezone, now)
		require.NoError(t, err)
		assert.NotEqual(t, observerDay, cityDay, "hour %d: picked %s", hour, pick.City.Name)
	}
}
