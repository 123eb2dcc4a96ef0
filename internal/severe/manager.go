// Package severe owns the single "currently displayed" critical alert and
// its auto-expiry timer.
package severe

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/go-quake-alerts/internal/models"
)

const DefaultTTL = 30 * time.Second

// ChangeFunc is called after every slot change. active is false once the
// slot has been emptied.
type ChangeFunc func(event models.SeismicEvent, active bool)

type Manager struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	ttl      time.Duration
	slot     *models.SeismicEvent
	timer    clockwork.Timer
	gen      uint64 // bumped on every raise/dismiss; stale timers compare against it
	onChange ChangeFunc
}

func NewManager(clock clockwork.Clock, ttl time.Duration) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		clock: clock,
		ttl:   ttl,
	}
}

// OnChange registers the slot change callback. Must be set before Raise.
func (m *Manager) OnChange(fn ChangeFunc) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// Raise pre-empts any displayed alert and arms a fresh expiry timer.
func (m *Manager) Raise(event models.SeismicEvent) {
	m.mu.Lock()
	m.stopTimerLocked()
	m.gen++
	gen := m.gen
	ev := event
	m.slot = &ev
	m.timer = m.clock.AfterFunc(m.ttl, func() { m.expire(gen) })
	onChange := m.onChange
	m.mu.Unlock()

	slog.Info("severe alert raised", "event_id", event.ID, "magnitude", event.Magnitude, "city", event.Location.City)
	if onChange != nil {
		onChange(event, true)
	}
}

// Dismiss cancels the timer and empties the slot. Dismissing an empty slot
// is a no-op.
func (m *Manager) Dismiss() {
	m.mu.Lock()
	if m.slot == nil && m.timer == nil {
		m.mu.Unlock()
		return
	}
	m.stopTimerLocked()
	m.gen++
	m.slot = nil
	onChange := m.onChange
	m.mu.Unlock()

	if onChange != nil {
		onChange(models.SeismicEvent{}, false)
	}
}

func (m *Manager) Current() (models.SeismicEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slot == nil {
		return models.SeismicEvent{}, false
	}
	return *m.slot, true
}

// Close cancels any pending expiry without notifying.
func (m *Manager) Close() {
	m.mu.Lock()
	m.stopTimerLocked()
	m.gen++
	m.mu.Unlock()
}

func (m *Manager) expire(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		// Superseded by a later Raise or Dismiss.
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.gen++
	m.slot = nil
	onChange := m.onChange
	m.mu.Unlock()

	slog.Debug("severe alert expired")
	if onChange != nil {
		onChange(models.SeismicEvent{}, false)
	}
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
