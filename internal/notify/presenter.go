// Package notify holds the transient user-facing message slot. It keeps at
// most one notification; a new one overwrites whatever is shown.
package notify

import (
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/go-quake-alerts/internal/models"
	"github.com/mr1hm/go-quake-alerts/internal/stream"
)

type Presenter struct {
	mu      sync.Mutex
	current *models.Notification
	clock   clockwork.Clock
	stream  *stream.Broadcaster[*models.Notification]
}

func NewPresenter(clock clockwork.Clock) *Presenter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Presenter{
		clock:  clock,
		stream: stream.NewBroadcaster[*models.Notification](),
	}
}

// Show replaces the current notification. It reports whether an undismissed
// notification was overwritten.
func (p *Presenter) Show(message string, kind models.NotificationKind) bool {
	n := models.Notification{
		Message:   message,
		Kind:      kind,
		CreatedAt: p.clock.Now(),
	}

	p.mu.Lock()
	overwritten := p.current != nil
	p.current = &n
	p.mu.Unlock()

	p.stream.Publish(&n)
	return overwritten
}

func (p *Presenter) Success(message string) { p.Show(message, models.NotificationSuccess) }

func (p *Presenter) Alert(message string) { p.Show(message, models.NotificationAlert) }

func (p *Presenter) Current() (models.Notification, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return models.Notification{}, false
	}
	return *p.current, true
}

// Dismiss empties the slot. Subscribers receive nil when a notification was
// actually removed.
func (p *Presenter) Dismiss() {
	p.mu.Lock()
	removed := p.current != nil
	p.current = nil
	p.mu.Unlock()

	if removed {
		p.stream.Publish(nil)
	}
}

// Subscribe streams every shown notification, and nil for each dismissal.
func (p *Presenter) Subscribe() (uint64, <-chan *models.Notification) {
	return p.stream.Subscribe()
}

func (p *Presenter) Unsubscribe(id uint64) {
	p.stream.Unsubscribe(id)
}

func (p *Presenter) Close() {
	p.stream.Close()
}
