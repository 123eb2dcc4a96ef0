package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr1hm/go-quake-alerts/internal/core"
	"github.com/mr1hm/go-quake-alerts/internal/dispatch"
	"github.com/mr1hm/go-quake-alerts/internal/ingestion"
	"github.com/mr1hm/go-quake-alerts/internal/models"
	"github.com/mr1hm/go-quake-alerts/internal/notify"
	"github.com/mr1hm/go-quake-alerts/internal/observability"
	"github.com/mr1hm/go-quake-alerts/internal/repository"
	"github.com/mr1hm/go-quake-alerts/internal/settings"
	"github.com/mr1hm/go-quake-alerts/internal/severe"
	"github.com/mr1hm/go-quake-alerts/internal/sms"
	"github.com/mr1hm/go-quake-alerts/internal/store"
)

type emptyFeed struct{}

func (emptyFeed) Fetch(context.Context, int) ([]models.SeismicEvent, error) { return nil, nil }

type okGateway struct{}

func (okGateway) Subscribe(context.Context, string) error   { return nil }
func (okGateway) Unsubscribe(context.Context, string) error { return nil }

type silentSound struct{}

func (silentSound) Play(models.AlertSound) {}
func (silentSound) Close() error           { return nil }

type okPusher struct{}

func (okPusher) Push(context.Context, string, models.AlertLogEntry) error { return nil }

func setupTestApp(t *testing.T, topic string) *core.App {
	t.Helper()
	ctx := context.Background()

	db, err := repository.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := clockwork.NewFakeClock()
	metrics := observability.NewMetricsForTesting()
	st := store.New(db, metrics)
	presenter := notify.NewPresenter(clock)

	app := core.New(ctx, core.Components{
		Settings: settings.NewHandle(st.LoadSettings(ctx), st),
		Severe:   severe.NewManager(clock, 30*time.Second),
		Sound:    silentSound{},
		Notify:   presenter,
		Dispatch: dispatch.NewManager(okPusher{}, presenter,
			dispatch.WithRepository(db),
			dispatch.WithClock(clock),
			dispatch.WithTopic(topic),
		),
		SMS:       sms.NewManager(ctx, okGateway{}, st, presenter, metrics),
		Store:     st,
		Metrics:   metrics,
		Workers:   1,
		QueueSize: 4,
	}, emptyFeed{}, ingestion.WithClock(clock))
	t.Cleanup(func() { app.Stop() })
	return app
}

func setupTestRouter(app *core.App) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHandler(app)
	handler.RegisterRoutes(router)
	return router
}

func doRequest(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func sampleEvents() []models.SeismicEvent {
	return []models.SeismicEvent{
		{ID: 3, Magnitude: 6.8, Depth: 12, Location: models.Location{Lat: 25.57, Lon: 91.88, City: "Shillong"}, Severity: models.SeveritySevere},
		{ID: 2, Magnitude: 4.1, Depth: 8, Location: models.Location{Lat: 23.24, Lon: 69.67, City: "Bhuj"}, Severity: models.SeverityModerate},
		{ID: 1, Magnitude: 2.9, Depth: 5, Location: models.Location{Lat: 30.32, Lon: 78.03, City: "Dehradun"}, Severity: models.SeverityLow},
	}
}

func TestHealth(t *testing.T) {
	router := setupTestRouter(setupTestApp(t, ""))

	w := doRequest(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestGetEvents(t *testing.T) {
	app := setupTestApp(t, "")
	app.Poller().Restore(sampleEvents())
	router := setupTestRouter(app)

	tests := []struct {
		name    string
		path    string
		wantIDs []int64
	}{
		{"all", "/api/events", []int64{3, 2, 1}},
		{"min magnitude", "/api/events?min_magnitude=4.0", []int64{3, 2}},
		{"limit", "/api/events?limit=1", []int64{3}},
		{"bad params ignored", "/api/events?limit=abc&min_magnitude=x", []int64{3, 2, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodGet, tt.path, "")
			require.Equal(t, http.StatusOK, w.Code)

			var events []models.SeismicEvent
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
			ids := make([]int64, 0, len(events))
			for _, e := range events {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestGetEvents_EmptyIsArray(t *testing.T) {
	router := setupTestRouter(setupTestApp(t, ""))

	w := doRequest(router, http.MethodGet, "/api/events", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestGetEvents_GeoJSON(t *testing.T) {
	app := setupTestApp(t, "")
	app.Poller().Restore(sampleEvents())
	router := setupTestRouter(app)

	w := doRequest(router, http.MethodGet, "/api/events?format=geojson", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/geo+json", w.Header().Get("Content-Type"))

	var fc FeatureCollection
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 3)
	assert.Equal(t, []float64{91.88, 25.57, -12}, fc.Features[0].Geometry.Coordinates)
	assert.Equal(t, "severe", fc.Features[0].Properties["severity"])
}

func TestSevereAlert_GetAndDismiss(t *testing.T) {
	app := setupTestApp(t, "")
	router := setupTestRouter(app)

	w := doRequest(router, http.MethodGet, "/api/severe-alert", "")
	assert.JSONEq(t, `{"active":false}`, w.Body.String())

	app.Severe().Raise(sampleEvents()[0])

	w = doRequest(router, http.MethodGet, "/api/severe-alert", "")
	var got core.SevereAlert
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, got.Active)
	assert.Equal(t, int64(3), got.Event.ID)

	w = doRequest(router, http.MethodDelete, "/api/severe-alert", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	_, ok := app.Severe().Current()
	assert.False(t, ok)
}

func TestSendBroadcast_NoTopic(t *testing.T) {
	app := setupTestApp(t, "")
	router := setupTestRouter(app)
	entry := app.Dispatch().Record(context.Background(), sampleEvents()[0])

	w := doRequest(router, http.MethodPost, "/api/alerts/"+entry.ID+"/broadcast", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	got, _ := app.Dispatch().Get(entry.ID)
	assert.Equal(t, models.AlertStatusPending, got.Status)

	n, ok := app.Notifications().Current()
	require.True(t, ok)
	assert.Equal(t, "Notification channel not configured. Please wait a moment.", n.Message)
}

func TestSendBroadcast_UnknownEntry(t *testing.T) {
	router := setupTestRouter(setupTestApp(t, "quakes"))

	w := doRequest(router, http.MethodPost, "/api/alerts/nope/broadcast", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSendBroadcast_Accepted(t *testing.T) {
	app := setupTestApp(t, "")
	router := setupTestRouter(app)
	entry := app.Dispatch().Record(context.Background(), sampleEvents()[0])

	w := doRequest(router, http.MethodPut, "/api/broadcast/topic", `{"topic":"quakes"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"topic":"quakes","configured":true}`, w.Body.String())

	w = doRequest(router, http.MethodPost, "/api/alerts/"+entry.ID+"/broadcast", "")
	require.Equal(t, http.StatusAccepted, w.Code)

	var got models.AlertLogEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, models.AlertStatusSending, got.Status)

	// The workers are not running, so the entry stays in flight.
	w = doRequest(router, http.MethodPost, "/api/alerts/"+entry.ID+"/broadcast", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(router, http.MethodGet, "/api/alerts", "")
	var entries []models.AlertLogEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
}

func TestSetTopic_RejectsPath(t *testing.T) {
	router := setupTestRouter(setupTestApp(t, ""))

	w := doRequest(router, http.MethodPut, "/api/broadcast/topic", `{"topic":"a/b"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLatestAlert(t *testing.T) {
	app := setupTestApp(t, "quakes")
	router := setupTestRouter(app)

	w := doRequest(router, http.MethodGet, "/api/alerts/latest", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	entry := app.Dispatch().Record(context.Background(), sampleEvents()[0])
	require.NoError(t, app.Dispatch().SendBroadcast(context.Background(), entry.ID))

	w = doRequest(router, http.MethodGet, "/api/alerts/latest", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got models.AlertLogEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, models.AlertStatusSent, got.Status)
}

func TestSettings(t *testing.T) {
	router := setupTestRouter(setupTestApp(t, ""))

	w := doRequest(router, http.MethodGet, "/api/settings", "")
	assert.JSONEq(t, `{"alertThreshold":6,"alertSound":"beep"}`, w.Body.String())

	w = doRequest(router, http.MethodPatch, "/api/settings", `{"alertSound":"chime"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"alertThreshold":6,"alertSound":"chime"}`, w.Body.String())

	w = doRequest(router, http.MethodPatch, "/api/settings", `{"alertSound":"siren"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodPatch, "/api/settings", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTheme(t *testing.T) {
	router := setupTestRouter(setupTestApp(t, ""))

	w := doRequest(router, http.MethodGet, "/api/theme", "")
	assert.JSONEq(t, `{"theme":"dark"}`, w.Body.String())

	w = doRequest(router, http.MethodPut, "/api/theme", `{"theme":"light"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/theme", "")
	assert.JSONEq(t, `{"theme":"light"}`, w.Body.String())

	w = doRequest(router, http.MethodPut, "/api/theme", `{"theme":"sepia"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSMS(t *testing.T) {
	app := setupTestApp(t, "")
	router := setupTestRouter(app)

	w := doRequest(router, http.MethodGet, "/api/sms", "")
	assert.JSONEq(t, `{"status":"idle"}`, w.Body.String())

	w = doRequest(router, http.MethodPost, "/api/sms/subscribe", `{"phoneNumber":"12345"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodPost, "/api/sms/subscribe", `{"phoneNumber":"+15551234567"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"subscribed","phoneNumber":"+15551234567"}`, w.Body.String())

	n, ok := app.Notifications().Current()
	require.True(t, ok)
	assert.Equal(t, models.NotificationSuccess, n.Kind)

	w = doRequest(router, http.MethodPost, "/api/sms/subscribe", `{"phoneNumber":"+15551234567"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(router, http.MethodPost, "/api/sms/unsubscribe", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"idle"}`, w.Body.String())

	w = doRequest(router, http.MethodPost, "/api/sms/unsubscribe", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestNotification(t *testing.T) {
	app := setupTestApp(t, "")
	router := setupTestRouter(app)

	w := doRequest(router, http.MethodGet, "/api/notification", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	app.Notifications().Alert("first")
	app.Notifications().Alert("second")

	w = doRequest(router, http.MethodGet, "/api/notification", "")
	require.Equal(t, http.StatusOK, w.Code)
	var n models.Notification
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &n))
	assert.Equal(t, "second", n.Message)
	assert.Equal(t, models.NotificationAlert, n.Kind)

	w = doRequest(router, http.MethodDelete, "/api/notification", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	_, ok := app.Notifications().Current()
	assert.False(t, ok)
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimitMiddleware(2))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, doRequest(router, http.MethodGet, "/ping", "").Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestNewRouter_MetricsAndCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(setupTestApp(t, ""), 0)

	w := doRequest(router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStream(t *testing.T) {
	app := setupTestApp(t, "")
	app.Poller().Restore(sampleEvents())
	srv := httptest.NewServer(setupTestRouter(app))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	type envelope struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	read := func() envelope {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg envelope
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	first := read()
	assert.Equal(t, "snapshot", first.Type)
	var events []models.SeismicEvent
	require.NoError(t, json.Unmarshal(first.Data, &events))
	assert.Len(t, events, 3)

	app.Notifications().Alert("New Alert: M6.8 near Shillong!")
	note := read()
	assert.Equal(t, "notification", note.Type)
	assert.Contains(t, string(note.Data), "Shillong")

	w := doRequest(setupTestRouter(app), http.MethodDelete, "/api/notification", "")
	require.Equal(t, http.StatusNoContent, w.Code)
	cleared := read()
	assert.Equal(t, "notification", cleared.Type)
	assert.Equal(t, "null", string(cleared.Data))

	app.Severe().Raise(sampleEvents()[0])
	sev := read()
	assert.Equal(t, "severe_alert", sev.Type)
	assert.Contains(t, string(sev.Data), `"active":true`)
}
