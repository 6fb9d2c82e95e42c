// Package display is the write-only presentation boundary the refresh
// cycle draws on. Slots are named after the dashboard elements they feed.
package display

import (
	"sync"

	"opposite-clock/internal/logging"

	"github.com/rs/zerolog"
)

// TextSlot names a text element.
type TextSlot string

const (
	UserCity            TextSlot = "userCity"
	UserTime            TextSlot = "userTime"
	UserTimezone        TextSlot = "userTimezone"
	DisplayTitle        TextSlot = "displayTitle"
	DestinationCity     TextSlot = "destinationCity"
	DestinationTime     TextSlot = "destinationTime"
	DestinationTimezone TextSlot = "destinationTimezone"
	Status              TextSlot = "status"
)

// ImageSlot names a background image element.
type ImageSlot string

const (
	// UserInfo is the observer panel.
	UserInfo ImageSlot = "userInfo"
	// MainDisplay is the destination panel.
	MainDisplay ImageSlot = "mainDisplay"
)

// TextSlots lists every text slot in dashboard order.
func TextSlots() []TextSlot {
	return []TextSlot{
		UserCity, UserTime, UserTimezone,
		DisplayTitle, DestinationCity, DestinationTime, DestinationTimezone,
		Status,
	}
}

// ImageSlots lists every image slot.
func ImageSlots() []ImageSlot {
	return []ImageSlot{UserInfo, MainDisplay}
}

// Sink receives slot assignments. Implementations must be safe for
// concurrent use; overlapping updates write with last-writer-wins.
type Sink interface {
	SetText(slot TextSlot, value string)
	SetBackground(slot ImageSlot, url string)
}

// Multi fans every write out to each sink in order.
type Multi []Sink

func (m Multi) SetText(slot TextSlot, value string) {
	for _, s := range m {
		s.SetText(slot, value)
	}
}

func (m Multi) SetBackground(slot ImageSlot, url string) {
	for _, s := range m {
		s.SetBackground(slot, url)
	}
}

// LogSink writes each assignment to the logger at debug level.
type LogSink struct {
	mu     sync.Mutex
	logger zerolog.Logger
}

func NewLogSink() *LogSink {
	return &LogSink{logger: logging.Component("display")}
}

func (l *LogSink) SetText(slot TextSlot, value string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Debug().Str("slot", string(slot)).Str("text", value).Msg("text")
}

func (l *LogSink) SetBackground(slot ImageSlot, url string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Debug().Str("slot", string(slot)).Str("url", url).Msg("background")
}
