package ingestion

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/go-quake-alerts/internal/models"
	"github.com/mr1hm/go-quake-alerts/internal/observability"
	"github.com/mr1hm/go-quake-alerts/internal/stream"
)

const (
	DefaultInterval = 30 * time.Second
	DefaultLimit    = 50
)

// SnapshotHandler runs alert side effects for a freshly fetched snapshot.
// It is called before subscribers see the snapshot.
type SnapshotHandler interface {
	HandleSnapshot(ctx context.Context, prev, next []models.SeismicEvent)
}

type Poller struct {
	feed     Fetcher
	handler  SnapshotHandler
	clock    clockwork.Clock
	interval time.Duration
	limit    int
	metrics  *observability.Metrics

	mu       sync.RWMutex
	snapshot []models.SeismicEvent

	// applyMu orders completions: evaluation, swap and publish of one fetch
	// finish before the next completion starts.
	applyMu sync.Mutex

	stream *stream.Broadcaster[[]models.SeismicEvent]
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type PollerOption func(*Poller)

func WithClock(c clockwork.Clock) PollerOption {
	return func(p *Poller) { p.clock = c }
}

func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) { p.interval = d }
}

func WithLimit(n int) PollerOption {
	return func(p *Poller) { p.limit = n }
}

func WithMetrics(m *observability.Metrics) PollerOption {
	return func(p *Poller) { p.metrics = m }
}

func NewPoller(feed Fetcher, handler SnapshotHandler, opts ...PollerOption) *Poller {
	p := &Poller{
		feed:     feed,
		handler:  handler,
		clock:    clockwork.NewRealClock(),
		interval: DefaultInterval,
		limit:    DefaultLimit,
		stream:   stream.NewBroadcaster[[]models.SeismicEvent](),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Restore seeds the snapshot, e.g. from the persisted cache, before Start.
func (p *Poller) Restore(events []models.SeismicEvent) {
	p.mu.Lock()
	p.snapshot = models.CloneEvents(events)
	p.mu.Unlock()
}

func (p *Poller) Snapshot() []models.SeismicEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return models.CloneEvents(p.snapshot)
}

func (p *Poller) Subscribe() (uint64, <-chan []models.SeismicEvent) {
	return p.stream.Subscribe()
}

func (p *Poller) Unsubscribe(id uint64) {
	p.stream.Unsubscribe(id)
}

// Start fetches immediately and then on every interval tick. Ticks do not
// wait for a slow fetch, so fetches may overlap; completions apply in the
// order they finish.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	ticker := p.clock.NewTicker(p.interval)

	p.wg.Add(1)
	go p.run(ctx, ticker)
}

func (p *Poller) run(ctx context.Context, ticker clockwork.Ticker) {
	defer p.wg.Done()
	defer ticker.Stop()
	slog.Info("starting poller", "interval", p.interval, "limit", p.limit)

	// Initial poll
	p.spawn(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("poller shutting down")
			return
		case <-ticker.Chan():
			p.spawn(ctx)
		}
	}
}

func (p *Poller) spawn(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.poll(ctx)
	}()
}

// Stop cancels the ticker and waits for in-flight fetches to return.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.stream.Close()
	slog.Info("poller stopped")
}

func (p *Poller) poll(ctx context.Context) {
	slog.Debug("polling feed")

	events, err := p.feed.Fetch(ctx, p.limit)
	if err != nil {
		// Keep the previous snapshot; the UI never sees feed failures.
		slog.Error("poll failed", "error", err)
		p.count("error")
		return
	}
	if ctx.Err() != nil {
		return
	}
	p.count("success")
	p.apply(ctx, events)

	slog.Debug("poll complete", "count", len(events))
}

func (p *Poller) apply(ctx context.Context, next []models.SeismicEvent) {
	p.applyMu.Lock()
	defer p.applyMu.Unlock()

	p.mu.RLock()
	prev := p.snapshot
	p.mu.RUnlock()

	// Side effects are scheduled before readers can observe the new snapshot.
	if p.handler != nil {
		p.handler.HandleSnapshot(ctx, models.CloneEvents(prev), models.CloneEvents(next))
	}

	p.mu.Lock()
	p.snapshot = next
	p.mu.Unlock()

	p.stream.Publish(models.CloneEvents(next))
}

func (p *Poller) count(outcome string) {
	if p.metrics != nil {
		p.metrics.Polls.WithLabelValues(outcome).Inc()
	}
}
