package display

import (
	"sync"
	"time"
)

// Snapshot is a copy of the board at one moment.
type Snapshot struct {
	Text        map[TextSlot]string  `json:"text"`
	Backgrounds map[ImageSlot]string `json:"backgrounds"`
	UpdateID    string               `json:"update_id,omitempty"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// Board is an in-memory Sink holding the latest value of every slot.
type Board struct {
	mu          sync.RWMutex
	text        map[TextSlot]string
	backgrounds map[ImageSlot]string
	updateID    string
	updatedAt   time.Time
	now         func() time.Time
}

func NewBoard() *Board {
	return &Board{
		text:        make(map[TextSlot]string),
		backgrounds: make(map[ImageSlot]string),
		now:         time.Now,
	}
}

func (b *Board) SetText(slot TextSlot, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text[slot] = value
	b.updatedAt = b.now()
}

func (b *Board) SetBackground(slot ImageSlot, url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.backgrounds[slot] = url
	b.updatedAt = b.now()
}

// SetUpdateID tags the board with the update currently writing to it.
func (b *Board) SetUpdateID(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updateID = id
}

// Text returns the current value of slot.
func (b *Board) Text(slot TextSlot) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text[slot]
}

// Background returns the current URL of slot.
func (b *Board) Background(slot ImageSlot) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.backgrounds[slot]
}

// Snapshot copies the board.
func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	text := make(map[TextSlot]string, len(b.text))
	for k, v := range b.text {
		text[k] = v
	}
	backgrounds := make(map[ImageSlot]string, len(b.backgrounds))
	for k, v := range b.backgrounds {
		backgrounds[k] = v
	}

	return Snapshot{
		Text:        text,
		Backgrounds: backgrounds,
		UpdateID:    b.updateID,
		UpdatedAt:   b.updatedAt,
	}
}
