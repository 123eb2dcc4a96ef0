package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mr1hm/go-quake-alerts/internal/models"
)

const genericPushFailure = "Failed to send broadcast."

// Pusher delivers one alert to a broadcast topic.
type Pusher interface {
	Push(ctx context.Context, topic string, entry models.AlertLogEntry) error
}

// PushError is a non-2xx response from the broadcast host.
type PushError struct {
	StatusCode int
	Detail     string
}

func (e *PushError) Error() string {
	return e.Detail
}

// FailureReason returns the user-facing reason for a failed push.
func FailureReason(err error) string {
	var pe *PushError
	if errors.As(err, &pe) && pe.Detail != "" {
		return pe.Detail
	}
	return genericPushFailure
}

// NtfyClient publishes alerts to an ntfy-compatible host.
type NtfyClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewNtfyClient(baseURL string, timeout time.Duration) *NtfyClient {
	return &NtfyClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *NtfyClient) Push(ctx context.Context, topic string, entry models.AlertLogEntry) error {
	u := c.baseURL + "/" + url.PathEscape(topic)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(entry.Message))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Title", Title(entry.Event))
	req.Header.Set("Priority", "urgent")
	req.Header.Set("Tags", "warning,earthquake")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("broadcast request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &PushError{StatusCode: resp.StatusCode, Detail: parseDetail(resp.Body)}
	}
	return nil
}

// Title is the human-readable headline carried with every broadcast.
func Title(e models.SeismicEvent) string {
	return fmt.Sprintf("SEVERE EARTHQUAKE: M%.1f near %s", e.Magnitude, e.Location.City)
}

func parseDetail(body io.Reader) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil || json.Unmarshal(data, &payload) != nil || payload.Detail == "" {
		return genericPushFailure
	}
	return payload.Detail
}
