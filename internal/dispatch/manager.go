// Package dispatch owns the alert log and the per-entry broadcast state
// machine: pending -> sending -> {sent, failed}, with failed -> sending as a
// user-initiated retry.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/go-quake-alerts/internal/models"
	"github.com/mr1hm/go-quake-alerts/internal/observability"
	"github.com/mr1hm/go-quake-alerts/internal/repository"
)

var (
	ErrChannelNotReady   = errors.New("notification channel not configured")
	ErrInFlight          = errors.New("broadcast already in flight")
	ErrInvalidTransition = errors.New("invalid alert status transition")
)

const channelNotReadyMessage = "Notification channel not configured. Please wait a moment."

// Notifier surfaces alert-kind messages to the user.
type Notifier interface {
	Alert(message string)
}

// Job is a broadcast that has been moved to sending and awaits delivery.
type Job struct {
	EntryID string
	Topic   string
	Entry   models.AlertLogEntry
}

type Manager struct {
	mu      sync.Mutex
	entries []*models.AlertLogEntry
	index   map[string]*models.AlertLogEntry
	topic   string

	pusher   Pusher
	notifier Notifier
	repo     repository.AlertLogRepository
	sink     EventSink
	clock    clockwork.Clock
	metrics  *observability.Metrics
	newID    func() string
}

type Option func(*Manager)

func WithRepository(r repository.AlertLogRepository) Option {
	return func(m *Manager) { m.repo = r }
}

func WithSink(s EventSink) Option {
	return func(m *Manager) { m.sink = s }
}

func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

func WithTopic(topic string) Option {
	return func(m *Manager) { m.topic = strings.TrimSpace(topic) }
}

func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) { m.newID = fn }
}

func NewManager(pusher Pusher, notifier Notifier, opts ...Option) *Manager {
	m := &Manager{
		index:    make(map[string]*models.AlertLogEntry),
		pusher:   pusher,
		notifier: notifier,
		clock:    clockwork.NewRealClock(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load restores the persisted log. An entry stored as sending lost its
// in-flight request with the previous process and comes back as failed.
func (m *Manager) Load(ctx context.Context) error {
	if m.repo == nil {
		return nil
	}
	stored, err := m.repo.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("load alert log: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range stored {
		e := stored[i]
		if _, dup := m.index[e.ID]; dup {
			continue
		}
		if e.Status == models.AlertStatusSending {
			e.Status = models.AlertStatusFailed
		}
		m.entries = append(m.entries, &e)
		m.index[e.ID] = &e
	}
	slog.Info("alert log restored", "entries", len(m.entries))
	return nil
}

func (m *Manager) SetTopic(topic string) {
	m.mu.Lock()
	m.topic = strings.TrimSpace(topic)
	m.mu.Unlock()
	slog.Info("broadcast topic updated", "configured", topic != "")
}

func (m *Manager) Topic() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.topic
}

// Record appends a pending entry for a severe event.
func (m *Manager) Record(ctx context.Context, event models.SeismicEvent) models.AlertLogEntry {
	e := &models.AlertLogEntry{
		ID:        m.newID(),
		Type:      models.AlertTypeBroadcast,
		Event:     event,
		Message:   ComposeMessage(event),
		Status:    models.AlertStatusPending,
		CreatedAt: m.clock.Now(),
	}

	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.index[e.ID] = e
	snapshot := *e
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.AlertsLogged.Inc()
	}
	slog.Info("alert logged", "id", snapshot.ID, "event_id", event.ID, "magnitude", event.Magnitude)
	m.persist(ctx, snapshot)
	return snapshot
}

// Begin checks the send preconditions and moves the entry to sending. A
// missing entry or topic is reported to the user and changes nothing.
func (m *Manager) Begin(ctx context.Context, id string) (Job, error) {
	m.mu.Lock()
	e, ok := m.index[id]
	topic := m.topic
	if !ok || topic == "" {
		m.mu.Unlock()
		m.notifier.Alert(channelNotReadyMessage)
		if m.metrics != nil {
			m.metrics.Broadcasts.WithLabelValues("not_ready").Inc()
		}
		return Job{}, ErrChannelNotReady
	}
	if e.Status == models.AlertStatusSending {
		m.mu.Unlock()
		return Job{}, ErrInFlight
	}
	if !models.CanTransition(e.Status, models.AlertStatusSending) {
		status := e.Status
		m.mu.Unlock()
		return Job{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, status, models.AlertStatusSending)
	}
	e.Status = models.AlertStatusSending
	snapshot := *e
	m.mu.Unlock()

	m.persist(ctx, snapshot)
	return Job{EntryID: id, Topic: topic, Entry: snapshot}, nil
}

// Deliver performs the push for a job returned by Begin and records the
// outcome. Delivery failures are converted into a failed entry plus a
// notification; nothing is returned to the caller.
func (m *Manager) Deliver(ctx context.Context, job Job) {
	err := m.pusher.Push(ctx, job.Topic, job.Entry)
	if err != nil {
		slog.Error("broadcast failed", "id", job.EntryID, "topic", job.Topic, "error", err)
		m.finish(ctx, job.EntryID, models.AlertStatusFailed)
		m.notifier.Alert(fmt.Sprintf("Broadcast failed for alert near %s (%s). Please check your connection and retry.",
			job.Entry.Event.Location.City, strings.TrimSuffix(FailureReason(err), ".")))
		return
	}
	slog.Info("broadcast sent", "id", job.EntryID, "topic", job.Topic)
	m.finish(ctx, job.EntryID, models.AlertStatusSent)
}

// SendBroadcast runs Begin and Deliver in sequence.
func (m *Manager) SendBroadcast(ctx context.Context, id string) error {
	job, err := m.Begin(ctx, id)
	if err != nil {
		return err
	}
	m.Deliver(ctx, job)
	return nil
}

func (m *Manager) finish(ctx context.Context, id string, status models.AlertStatus) {
	m.mu.Lock()
	e, ok := m.index[id]
	if !ok || !models.CanTransition(e.Status, status) {
		m.mu.Unlock()
		slog.Warn("dropping stale broadcast completion", "id", id, "status", status)
		return
	}
	e.Status = status
	if status == models.AlertStatusSent {
		now := m.clock.Now()
		e.Timestamp = &now
	}
	snapshot := *e
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.Broadcasts.WithLabelValues(string(status)).Inc()
	}
	m.persist(ctx, snapshot)
}

func (m *Manager) Get(id string) (models.AlertLogEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.index[id]
	if !ok {
		return models.AlertLogEntry{}, false
	}
	return *e, true
}

// Entries returns the log in append order.
func (m *Manager) Entries() []models.AlertLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.AlertLogEntry, len(m.entries))
	for i, e := range m.entries {
		out[i] = *e
	}
	return out
}

// LatestSent returns the most recently delivered entry.
func (m *Manager) LatestSent() (models.AlertLogEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.AlertLogEntry
	for _, e := range m.entries {
		if e.Status != models.AlertStatusSent || e.Timestamp == nil {
			continue
		}
		if latest == nil || e.Timestamp.After(*latest.Timestamp) {
			latest = e
		}
	}
	if latest == nil {
		return models.AlertLogEntry{}, false
	}
	return *latest, true
}

func (m *Manager) persist(ctx context.Context, e models.AlertLogEntry) {
	if m.repo != nil {
		if err := m.repo.SaveEntry(ctx, &e); err != nil {
			slog.Error("failed to persist alert entry", "id", e.ID, "error", err)
			if m.metrics != nil {
				m.metrics.StoreErrors.WithLabelValues("write").Inc()
			}
		}
	}
	if m.sink != nil {
		if err := m.sink.Publish(ctx, e); err != nil {
			slog.Warn("failed to publish alert entry", "id", e.ID, "error", err)
		}
	}
}

// ComposeMessage builds the plaintext broadcast body for an event.
func ComposeMessage(e models.SeismicEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A magnitude %.1f earthquake was detected near %s", e.Magnitude, e.Location.City)
	if e.Location.State != "" {
		fmt.Fprintf(&b, ", %s", e.Location.State)
	}
	fmt.Fprintf(&b, " at a depth of %.1f km", e.Depth)
	if ts, err := time.Parse(time.RFC3339, e.Timestamp); err == nil {
		fmt.Fprintf(&b, " (%s UTC)", ts.UTC().Format("2006-01-02 15:04"))
	}
	b.WriteString(". Drop, cover and hold on. Stay away from windows and damaged buildings.")
	return b.String()
}
