// Package settings holds the single-writer handle for the user's alert
// settings.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mr1hm/go-quake-alerts/internal/models"
)

var ErrInvalidSettings = errors.New("invalid settings")

const maxThreshold = 10.0

type Persister interface {
	SaveSettings(ctx context.Context, s models.Settings)
}

type Handle struct {
	mu      sync.RWMutex
	current models.Settings
	persist Persister
}

func NewHandle(initial models.Settings, persist Persister) *Handle {
	return &Handle{current: initial, persist: persist}
}

func (h *Handle) Get() models.Settings {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Update merges a partial change into the current settings and persists the
// result. An invalid patch changes nothing.
func (h *Handle) Update(ctx context.Context, patch models.SettingsPatch) (models.Settings, error) {
	h.mu.Lock()
	next := h.current.Apply(patch)
	if err := validate(next); err != nil {
		h.mu.Unlock()
		return models.Settings{}, err
	}
	h.current = next
	h.mu.Unlock()

	if h.persist != nil {
		h.persist.SaveSettings(ctx, next)
	}
	slog.Info("settings updated", "threshold", next.AlertThreshold, "sound", next.AlertSound)
	return next, nil
}

func validate(s models.Settings) error {
	if s.AlertThreshold < 0 || s.AlertThreshold > maxThreshold {
		return fmt.Errorf("%w: alert threshold %.1f outside [0, %.0f]", ErrInvalidSettings, s.AlertThreshold, maxThreshold)
	}
	if !s.AlertSound.Valid() {
		return fmt.Errorf("%w: unknown alert sound %q", ErrInvalidSettings, s.AlertSound)
	}
	return nil
}
