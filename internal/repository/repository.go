package repository

import (
	"context"
	"errors"

	"github.com/mr1hm/go-quake-alerts/internal/models"
)

var ErrNotFound = errors.New("not found")

// KVRepository is the durable key/value surface behind the config store.
type KVRepository interface {
	Get(ctx context.Context, key string) (string, error) // ErrNotFound when unset
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// AlertLogRepository persists alert log entries. SaveEntry is an upsert
// keyed by entry id.
type AlertLogRepository interface {
	SaveEntry(ctx context.Context, e *models.AlertLogEntry) error
	ListEntries(ctx context.Context) ([]models.AlertLogEntry, error)
}
