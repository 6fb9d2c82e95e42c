// Package refresh drives the board: it resolves the observer once, then
// repaints both panels immediately and on every scheduled tick.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"opposite-clock/internal/catalog"
	"opposite-clock/internal/clock"
	"opposite-clock/internal/display"
	"opposite-clock/internal/imagery"
	"opposite-clock/internal/location"
	"opposite-clock/internal/logging"
	"opposite-clock/internal/metrics"
	"opposite-clock/internal/selector"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	DefaultInterval = 60 * time.Second

	StatusInitializing = "Initializing..."
	StatusLoadingImage = "Loading image..."

	TitleDaytime   = "Right now, it's daytime in..."
	TitleNighttime = "Right now, it's nighttime in..."
)

var (
	// ErrIdle is returned by Update before the location has been resolved.
	ErrIdle = errors.New("refresh cycle is idle")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("refresh cycle already started")
	// ErrStopped is returned by a Start that Stop interrupted.
	ErrStopped = errors.New("refresh cycle stopped")
)

// State is Idle until the observer location is known, Active afterwards.
type State int

const (
	Idle State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Resolver yields the observer location. It must not fail.
type Resolver interface {
	Resolve() location.Observer
}

// Report describes one completed update.
type Report struct {
	ID               string            `json:"id"`
	Observer         location.Observer `json:"observer"`
	ObserverPhase    clock.Phase       `json:"observer_phase"`
	ObserverTime     string            `json:"observer_time"`
	Destination      catalog.City      `json:"destination"`
	DestinationPhase clock.Phase       `json:"destination_phase"`
	DestinationTime  string            `json:"destination_time"`
	Opposite         bool              `json:"opposite"`
	ObserverImage    imagery.Result    `json:"observer_image"`
	DestinationImage imagery.Result    `json:"destination_image"`
	StartedAt        time.Time         `json:"started_at"`
	Duration         time.Duration     `json:"duration"`
}

type Config struct {
	Resolver Resolver
	Cities   []catalog.City
	Selector *selector.Selector
	Images   imagery.Fetcher
	Sink     display.Sink
	// Board, when set, is tagged with the id of the update writing to it.
	Board *display.Board
	// AfterUpdate runs after every successful update.
	AfterUpdate func(Report)
	Interval    time.Duration
	// SkipIfRunning drops a tick while the previous update is still running.
	// Off by default: overlapping updates race with last-writer-wins.
	SkipIfRunning bool
	Metrics       *metrics.Metrics
	Now           func() time.Time
}

// Cycle owns the observer location and the schedule. The zero value is not
// usable; call New.
type Cycle struct {
	cfg    Config
	logger zerolog.Logger

	// activateMu serializes Activate so the resolver runs once.
	activateMu sync.Mutex

	mu       sync.RWMutex
	state    State
	observer location.Observer
	run      *run
}

// run is one Start/Stop lifetime. cron is nil until the initial update
// has finished.
type run struct {
	cancel context.CancelFunc
	cron   *cron.Cron
}

func New(cfg Config) *Cycle {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Selector == nil {
		cfg.Selector = selector.New(nil)
	}
	if cfg.Sink == nil {
		cfg.Sink = display.Multi{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Cycle{
		cfg:    cfg,
		logger: logging.Component("refresh"),
	}
}

// State returns Idle or Active.
func (c *Cycle) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Observer returns the resolved location; ok is false while Idle.
func (c *Cycle) Observer() (location.Observer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.observer, c.state == Active
}

// Cities returns the catalog the cycle picks from.
func (c *Cycle) Cities() []catalog.City {
	out := make([]catalog.City, len(c.cfg.Cities))
	copy(out, c.cfg.Cities)
	return out
}

// Interval returns the tick period.
func (c *Cycle) Interval() time.Duration {
	return c.cfg.Interval
}

// Activate resolves the observer and moves the cycle to Active without
// scheduling anything. It is a no-op when already Active.
func (c *Cycle) Activate() location.Observer {
	c.activateMu.Lock()
	defer c.activateMu.Unlock()

	if obs, ok := c.Observer(); ok {
		return obs
	}

	// Sinks may block on the network; readers of the state must not.
	c.cfg.Sink.SetText(display.Status, StatusInitializing)
	obs := c.cfg.Resolver.Resolve()

	c.mu.Lock()
	c.observer = obs
	c.state = Active
	c.mu.Unlock()

	c.cfg.Metrics.SetLocationDegraded(obs.Degraded)
	c.cfg.Sink.SetText(display.Status, obs.Status())

	return obs
}

// Start activates the cycle, runs one update right away and then schedules
// an update every Interval until Stop. The first update's error is
// returned; later errors are logged. A Stop during the first update makes
// Start return ErrStopped without scheduling anything.
func (c *Cycle) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	r := &run{cancel: cancel}

	c.mu.Lock()
	if c.run != nil {
		c.mu.Unlock()
		cancel()
		return ErrAlreadyStarted
	}
	c.run = r
	c.mu.Unlock()

	obs := c.Activate()
	c.logger.Info().
		Str("label", obs.Label).
		Str("timezone", obs.Timezone).
		Dur("interval", c.cfg.Interval).
		Msg("refresh cycle active")

	if _, err := c.Update(runCtx); err != nil {
		c.abandon(r)
		return fmt.Errorf("initial update: %w", err)
	}

	cronLogger := cron.PrintfLogger(&c.logger)
	opts := []cron.Option{cron.WithLogger(cronLogger)}
	if c.cfg.SkipIfRunning {
		opts = append(opts, cron.WithChain(cron.SkipIfStillRunning(cronLogger)))
	}
	scheduler := cron.New(opts...)

	schedule := fmt.Sprintf("@every %s", c.cfg.Interval)
	if _, err := scheduler.AddFunc(schedule, func() { c.tick(runCtx) }); err != nil {
		c.abandon(r)
		return fmt.Errorf("schedule %q: %w", schedule, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run != r {
		cancel()
		return ErrStopped
	}
	r.cron = scheduler
	scheduler.Start()
	return nil
}

// abandon releases a run that never got a scheduler.
func (c *Cycle) abandon(r *run) {
	c.mu.Lock()
	if c.run == r {
		c.run = nil
	}
	c.mu.Unlock()
	r.cancel()
}

// Stop cancels in-flight lookups, stops the schedule and waits for running
// updates to return. It is safe to call more than once, and before Start has
// returned.
func (c *Cycle) Stop() {
	c.mu.Lock()
	r := c.run
	c.run = nil
	var scheduler *cron.Cron
	if r != nil {
		scheduler = r.cron
	}
	c.mu.Unlock()

	if r == nil {
		return
	}
	r.cancel()
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	c.logger.Info().Msg("refresh cycle stopped")
}

func (c *Cycle) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := c.Update(ctx); err != nil && !errors.Is(err, ErrIdle) {
		c.logger.Error().Err(err).Msg("update failed")
	}
}

// Update runs one full repaint of both panels. While Idle it does nothing
// and returns ErrIdle. A timezone error means the catalog or observer is
// bad and is returned as is.
func (c *Cycle) Update(ctx context.Context) (Report, error) {
	c.mu.RLock()
	state, obs := c.state, c.observer
	c.mu.RUnlock()

	if state == Idle {
		c.cfg.Metrics.RecordUpdate("idle", 0)
		return Report{}, ErrIdle
	}

	start := time.Now()
	report, err := c.update(ctx, obs, c.cfg.Now())
	elapsed := time.Since(start)
	if err != nil {
		c.cfg.Metrics.RecordUpdate("failure", elapsed.Seconds())
		return Report{}, err
	}
	report.Duration = elapsed
	c.cfg.Metrics.RecordUpdate("success", elapsed.Seconds())

	c.logger.Info().
		Str("update_id", report.ID).
		Str("observer_phase", report.ObserverPhase.String()).
		Str("destination", report.Destination.Name).
		Str("destination_phase", report.DestinationPhase.String()).
		Bool("observer_image_fallback", report.ObserverImage.Fallback()).
		Bool("destination_image_fallback", report.DestinationImage.Fallback()).
		Dur("took", elapsed).
		Msg("board updated")

	if c.cfg.AfterUpdate != nil {
		c.cfg.AfterUpdate(report)
	}
	return report, nil
}

func (c *Cycle) update(ctx context.Context, obs location.Observer, now time.Time) (Report, error) {
	sink := c.cfg.Sink
	report := Report{
		ID:        uuid.NewString(),
		Observer:  obs,
		StartedAt: now,
	}
	if c.cfg.Board != nil {
		c.cfg.Board.SetUpdateID(report.ID)
	}

	observerPhase, err := clock.PhaseOf(obs.Timezone, now)
	if err != nil {
		return Report{}, fmt.Errorf("observer phase: %w", err)
	}
	observerTime, err := clock.FormattedTime(obs.Timezone, now)
	if err != nil {
		return Report{}, fmt.Errorf("observer time: %w", err)
	}
	report.ObserverPhase = observerPhase
	report.ObserverTime = observerTime

	sink.SetText(display.UserCity, obs.Label)
	sink.SetText(display.UserTime, observerTime)
	sink.SetText(display.UserTimezone, obs.Timezone)

	report.ObserverImage = c.fetchImage(ctx, obs.Label, observerPhase == clock.Day)
	sink.SetBackground(display.UserInfo, report.ObserverImage.URL)

	pick, err := c.cfg.Selector.Pick(obs.Timezone, now, c.cfg.Cities)
	if err != nil {
		return Report{}, fmt.Errorf("pick opposite city: %w", err)
	}
	destTime, err := clock.FormattedTime(pick.City.Timezone, now)
	if err != nil {
		return Report{}, fmt.Errorf("destination time: %w", err)
	}
	report.Destination = pick.City
	report.DestinationPhase = pick.Phase
	report.DestinationTime = destTime
	report.Opposite = pick.Opposite

	sink.SetText(display.DisplayTitle, Title(pick.Phase))
	sink.SetText(display.DestinationCity, pick.City.Name)
	sink.SetText(display.DestinationTime, destTime)
	sink.SetText(display.DestinationTimezone, pick.City.Label())

	sink.SetText(display.Status, StatusLoadingImage)
	report.DestinationImage = c.fetchImage(ctx, pick.City.Name, pick.Phase == clock.Day)
	sink.SetBackground(display.MainDisplay, report.DestinationImage.URL)
	sink.SetText(display.Status, "")

	return report, nil
}

func (c *Cycle) fetchImage(ctx context.Context, city string, isDay bool) imagery.Result {
	if c.cfg.Images == nil {
		return imagery.Result{URL: imagery.FallbackURL, Source: imagery.SourceFallback, Query: imagery.Query(city, isDay)}
	}
	return c.cfg.Images.FetchCityImage(ctx, city, isDay)
}

// Title is the destination heading for a phase.
func Title(p clock.Phase) string {
	if p == clock.Day {
		return TitleDaytime
	}
	return TitleNighttime
}
