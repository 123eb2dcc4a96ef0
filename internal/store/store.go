// Package store is the persistent config store: typed keys over a durable
// key/value repository. Reads fall back to defaults and writes are
// best-effort; failures are logged and counted but never returned to the
// in-memory owner of the state.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/mr1hm/go-quake-alerts/internal/models"
	"github.com/mr1hm/go-quake-alerts/internal/observability"
	"github.com/mr1hm/go-quake-alerts/internal/repository"
)

const (
	KeySettings    = "earthquake_alert_settings"
	KeyTheme       = "earthquake_alert_theme"
	KeyEventsCache = "earthquake_events_cache"
	KeyPhoneNumber = "earthquake_alert_phone_number"
)

type Store struct {
	kv      repository.KVRepository
	metrics *observability.Metrics
}

func New(kv repository.KVRepository, metrics *observability.Metrics) *Store {
	return &Store{kv: kv, metrics: metrics}
}

// LoadSettings overlays the stored settings onto the defaults field by
// field. Fields that are missing or malformed keep their default; the rest
// are restored.
func (s *Store) LoadSettings(ctx context.Context) models.Settings {
	settings := models.DefaultSettings()

	raw, ok := s.read(ctx, KeySettings)
	if !ok {
		return settings
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		s.readFailed(KeySettings, err)
		return settings
	}

	merged := settings
	targets := map[string]any{
		"alertThreshold": &merged.AlertThreshold,
		"alertSound":     &merged.AlertSound,
	}
	for name, dst := range targets {
		value, ok := fields[name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(value, dst); err != nil {
			slog.Warn("ignoring malformed stored setting", "field", name, "error", err)
		}
	}
	if !merged.AlertSound.Valid() {
		merged.AlertSound = settings.AlertSound
	}
	return merged
}

func (s *Store) SaveSettings(ctx context.Context, settings models.Settings) {
	s.writeJSON(ctx, KeySettings, settings)
}

func (s *Store) LoadTheme(ctx context.Context) models.Theme {
	raw, ok := s.read(ctx, KeyTheme)
	if !ok || !models.Theme(raw).Valid() {
		return models.ThemeDark
	}
	return models.Theme(raw)
}

func (s *Store) SaveTheme(ctx context.Context, theme models.Theme) {
	s.write(ctx, KeyTheme, string(theme))
}

// LoadEvents returns the cached snapshot, or nil unless it is a non-empty,
// well-formed array.
func (s *Store) LoadEvents(ctx context.Context) []models.SeismicEvent {
	raw, ok := s.read(ctx, KeyEventsCache)
	if !ok {
		return nil
	}
	var events []models.SeismicEvent
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		s.readFailed(KeyEventsCache, err)
		return nil
	}
	if len(events) == 0 {
		return nil
	}
	return events
}

func (s *Store) SaveEvents(ctx context.Context, events []models.SeismicEvent) {
	if events == nil {
		events = []models.SeismicEvent{}
	}
	s.writeJSON(ctx, KeyEventsCache, events)
}

func (s *Store) LoadPhoneNumber(ctx context.Context) string {
	raw, _ := s.read(ctx, KeyPhoneNumber)
	return raw
}

func (s *Store) SavePhoneNumber(ctx context.Context, phone string) {
	s.write(ctx, KeyPhoneNumber, phone)
}

func (s *Store) ClearPhoneNumber(ctx context.Context) {
	if err := s.kv.Delete(ctx, KeyPhoneNumber); err != nil {
		s.writeFailed(KeyPhoneNumber, err)
	}
}

func (s *Store) read(ctx context.Context, key string) (string, bool) {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return "", false
	}
	if err != nil {
		s.readFailed(key, err)
		return "", false
	}
	return raw, true
}

func (s *Store) write(ctx context.Context, key, value string) {
	if err := s.kv.Set(ctx, key, value); err != nil {
		s.writeFailed(key, err)
	}
}

func (s *Store) writeJSON(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.writeFailed(key, err)
		return
	}
	s.write(ctx, key, string(data))
}

func (s *Store) readFailed(key string, err error) {
	slog.Error("failed to load from store", "key", key, "error", err)
	if s.metrics != nil {
		s.metrics.StoreErrors.WithLabelValues("read").Inc()
	}
}

func (s *Store) writeFailed(key string, err error) {
	slog.Error("failed to save to store", "key", key, "error", err)
	if s.metrics != nil {
		s.metrics.StoreErrors.WithLabelValues("write").Inc()
	}
}
