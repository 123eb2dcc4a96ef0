package ingestion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/events", r.URL.Path)
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":12,"magnitude":7.2,"depth":10.5,"location":{"lat":25.57,"lon":91.88,"city":"Shillong","state":"Meghalaya"},"timestamp":"2026-01-26T08:00:00Z","severity":"Severe"},
			{"id":11,"magnitude":3.1,"depth":5,"location":{"lat":28.61,"lon":77.2,"city":"Delhi","state":"Delhi"},"timestamp":"2026-01-26T07:40:00Z","severity":"Low"}
		]`))
	}))
	defer srv.Close()

	c := NewFeedClient(srv.URL+"/api/events", 5*time.Second)
	events, err := c.Fetch(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, int64(12), events[0].ID)
	assert.Equal(t, 7.2, events[0].Magnitude)
	assert.Equal(t, "Shillong", events[0].Location.City)
	assert.Equal(t, "Severe", string(events[0].Severity))
}

func TestFeedClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `[]`},
		{"not found", http.StatusNotFound, ``},
		{"malformed json", http.StatusOK, `[{"id":`},
		{"null body", http.StatusOK, `null`},
		{"object instead of array", http.StatusOK, `{"id":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewFeedClient(srv.URL, time.Second).Fetch(context.Background(), 50)
			assert.Error(t, err)
		})
	}
}

func TestFeedClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewFeedClient(url, time.Second).Fetch(context.Background(), 10)
	assert.Error(t, err)
}
