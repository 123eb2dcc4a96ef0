package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mr1hm/go-quake-alerts/internal/models"
)

// Fetcher returns the latest feed snapshot, newest first.
type Fetcher interface {
	Fetch(ctx context.Context, limit int) ([]models.SeismicEvent, error)
}

type FeedClient struct {
	url        string
	httpClient *http.Client
}

func NewFeedClient(feedURL string, timeout time.Duration) *FeedClient {
	return &FeedClient{
		url: feedURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *FeedClient) Fetch(ctx context.Context, limit int) ([]models.SeismicEvent, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("error parsing feed url: %w", err)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}

	var events []models.SeismicEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("error decoding resp.Body: %w", err)
	}
	if events == nil {
		// JSON null is not a snapshot.
		return nil, fmt.Errorf("error decoding resp.Body: feed returned null")
	}

	return events, nil
}
