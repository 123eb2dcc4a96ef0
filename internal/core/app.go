// Package core wires the poller to the alert side effects and owns the
// lifecycle of every long-running component.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mr1hm/go-quake-alerts/internal/dispatch"
	"github.com/mr1hm/go-quake-alerts/internal/ingestion"
	"github.com/mr1hm/go-quake-alerts/internal/models"
	"github.com/mr1hm/go-quake-alerts/internal/notify"
	"github.com/mr1hm/go-quake-alerts/internal/observability"
	"github.com/mr1hm/go-quake-alerts/internal/settings"
	"github.com/mr1hm/go-quake-alerts/internal/severe"
	"github.com/mr1hm/go-quake-alerts/internal/sms"
	"github.com/mr1hm/go-quake-alerts/internal/store"
	"github.com/mr1hm/go-quake-alerts/internal/stream"
	"github.com/mr1hm/go-quake-alerts/internal/worker"
)

// SoundPlayer plays an alert profile and never fails the caller.
type SoundPlayer interface {
	Play(sound models.AlertSound)
	Close() error
}

// SevereAlert is a change of the severe alert slot as seen by the UI.
type SevereAlert struct {
	Active bool                 `json:"active"`
	Event  *models.SeismicEvent `json:"event,omitempty"`
}

type Components struct {
	Settings *settings.Handle
	Severe   *severe.Manager
	Sound    SoundPlayer
	Notify   *notify.Presenter
	Dispatch *dispatch.Manager
	SMS      *sms.Manager
	Store    *store.Store
	Sink     dispatch.EventSink
	Metrics  *observability.Metrics

	Workers   int
	QueueSize int
}

type App struct {
	settings *settings.Handle
	severe   *severe.Manager
	sound    SoundPlayer
	notify   *notify.Presenter
	dispatch *dispatch.Manager
	sms      *sms.Manager
	store    *store.Store
	sink     dispatch.EventSink
	metrics  *observability.Metrics

	poller       *ingestion.Poller
	pool         *worker.WorkerPool[dispatch.Job]
	severeStream *stream.Broadcaster[SevereAlert]
}

// New builds the app and its poller. The cached event snapshot is restored
// before the first fetch so the first poll has something to compare with.
func New(ctx context.Context, c Components, feed ingestion.Fetcher, pollerOpts ...ingestion.PollerOption) *App {
	a := &App{
		settings:     c.Settings,
		severe:       c.Severe,
		sound:        c.Sound,
		notify:       c.Notify,
		dispatch:     c.Dispatch,
		sms:          c.SMS,
		store:        c.Store,
		sink:         c.Sink,
		metrics:      c.Metrics,
		severeStream: stream.NewBroadcaster[SevereAlert](),
	}
	a.severe.OnChange(a.publishSevere)

	a.poller = ingestion.NewPoller(feed, a, pollerOpts...)
	if cached := a.store.LoadEvents(ctx); len(cached) > 0 {
		a.poller.Restore(cached)
		slog.Info("restored cached events", "count", len(cached))
	}

	workers := c.Workers
	if workers <= 0 {
		workers = 1
	}
	a.pool = worker.NewWorkerPool[dispatch.Job](workers, c.QueueSize, a.dispatch.Deliver)
	return a
}

// HandleSnapshot evaluates a freshly fetched snapshot. On a new severe event
// the slot is raised, the sound played, the user notified and the entry
// logged, in that order.
func (a *App) HandleSnapshot(ctx context.Context, prev, next []models.SeismicEvent) {
	current := a.settings.Get()

	if alert, ok := ingestion.Evaluate(prev, next, current.AlertThreshold); ok {
		slog.Info("severe event detected",
			"event_id", alert.ID,
			"magnitude", alert.Magnitude,
			"city", alert.Location.City,
			"threshold", current.AlertThreshold,
		)
		if a.metrics != nil {
			a.metrics.SevereAlerts.Inc()
		}
		a.severe.Raise(alert)
		a.sound.Play(current.AlertSound)
		a.notify.Alert(fmt.Sprintf("New Alert: M%.1f near %s!", alert.Magnitude, alert.Location.City))
		a.dispatch.Record(ctx, alert)
	}

	a.store.SaveEvents(ctx, next)
}

// SendBroadcast moves the entry to sending and hands delivery to the worker
// pool. When the pool cannot take the job it is delivered inline.
func (a *App) SendBroadcast(ctx context.Context, id string) error {
	job, err := a.dispatch.Begin(ctx, id)
	if err != nil {
		return err
	}
	if err := a.pool.Submit(job); err != nil {
		slog.Warn("broadcast queue unavailable, delivering inline", "id", id, "error", err)
		a.dispatch.Deliver(ctx, job)
	}
	return nil
}

// Start restores the alert log and starts the broadcast workers and the
// poller.
func (a *App) Start(ctx context.Context) {
	if err := a.dispatch.Load(ctx); err != nil {
		// The log starts empty; new entries are still persisted.
		slog.Error("failed to restore alert log", "error", err)
	}
	a.pool.Start(ctx)
	a.poller.Start(ctx)
}

// Stop cancels the poller and the severe alert timer and releases the audio
// device and the event sink. Queued and in-flight broadcasts finish first,
// so the context passed to Start must stay live until Stop returns.
func (a *App) Stop() error {
	a.poller.Stop()
	a.pool.Stop()
	a.severe.Close()
	a.notify.Close()
	a.severeStream.Close()

	var errs []error
	if err := a.sound.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sound device: %w", err))
	}
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close event sink: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *App) publishSevere(event models.SeismicEvent, active bool) {
	update := SevereAlert{Active: active}
	if active {
		ev := event
		update.Event = &ev
	}
	a.severeStream.Publish(update)
}

func (a *App) Events() []models.SeismicEvent { return a.poller.Snapshot() }

func (a *App) Poller() *ingestion.Poller { return a.poller }

func (a *App) Settings() *settings.Handle { return a.settings }

func (a *App) Severe() *severe.Manager { return a.severe }

func (a *App) Notifications() *notify.Presenter { return a.notify }

func (a *App) Dispatch() *dispatch.Manager { return a.dispatch }

func (a *App) SMS() *sms.Manager { return a.sms }

func (a *App) Store() *store.Store { return a.store }

func (a *App) SubscribeSevere() (uint64, <-chan SevereAlert) { return a.severeStream.Subscribe() }

func (a *App) UnsubscribeSevere(id uint64) { a.severeStream.Unsubscribe(id) }
