package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mr1hm/go-quake-alerts/internal/models"
	_ "modernc.org/sqlite"
)

type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// :memory: databases are per-connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS alert_log (
			id TEXT PRIMARY KEY,
			seq INTEGER NOT NULL,
			type TEXT NOT NULL,
			event BLOB NOT NULL,
			message TEXT NOT NULL,
			status TEXT NOT NULL,
			sent_at DATETIME,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_alert_log_seq ON alert_log(seq);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func (s *SQLiteDB) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("error reading key %q: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteDB) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("error writing key %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteDB) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("error deleting key %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteDB) SaveEntry(ctx context.Context, e *models.AlertLogEntry) error {
	event, err := json.Marshal(e.Event)
	if err != nil {
		return fmt.Errorf("error encoding event: %w", err)
	}

	var sentAt any
	if e.Timestamp != nil {
		sentAt = e.Timestamp.UTC()
	}

	// seq keeps append order stable across restarts.
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alert_log (id, seq, type, event, message, status, sent_at, created_at)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM alert_log), ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, sent_at = excluded.sent_at`,
		e.ID, string(e.Type), event, e.Message, string(e.Status), sentAt, e.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("error saving alert %s: %w", e.ID, err)
	}
	return nil
}

func (s *SQLiteDB) ListEntries(ctx context.Context) ([]models.AlertLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, event, message, status, sent_at, created_at
		FROM alert_log ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("error listing alerts: %w", err)
	}
	defer rows.Close()

	var entries []models.AlertLogEntry
	for rows.Next() {
		var (
			e      models.AlertLogEntry
			typ    string
			status string
			event  []byte
			sentAt sql.NullTime
		)
		if err := rows.Scan(&e.ID, &typ, &event, &e.Message, &status, &sentAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning alert: %w", err)
		}
		if err := json.Unmarshal(event, &e.Event); err != nil {
			return nil, fmt.Errorf("error decoding event for alert %s: %w", e.ID, err)
		}
		e.Type = models.AlertType(typ)
		e.Status = models.AlertStatus(status)
		if sentAt.Valid {
			t := sentAt.Time
			e.Timestamp = &t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
