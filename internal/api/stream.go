package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// streamMessage is the envelope for every value pushed over /ws.
type streamMessage struct {
	Type string `json:"type"` // snapshot, notification, severe_alert
	Data any    `json:"data"`
}

// stream pushes snapshots, notifications and severe alert changes to a
// websocket client until it disconnects or the server shuts down.
func (h *Handler) stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	snapID, snapshots := h.app.Poller().Subscribe()
	defer h.app.Poller().Unsubscribe(snapID)
	noteID, notes := h.app.Notifications().Subscribe()
	defer h.app.Notifications().Unsubscribe(noteID)
	severeID, severe := h.app.SubscribeSevere()
	defer h.app.UnsubscribeSevere(severeID)

	slog.Info("client subscribed to alert stream", "remote", c.ClientIP())

	// The read loop only exists to observe pongs and the close frame.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	send := func(msg streamMessage) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			slog.Warn("failed to write to alert stream", "error", err)
			return false
		}
		return true
	}

	// Current state first, so a fresh client does not wait for the next poll.
	if !send(streamMessage{Type: "snapshot", Data: h.app.Events()}) {
		return
	}

	for {
		select {
		case <-closed:
			slog.Info("client disconnected from alert stream", "remote", c.ClientIP())
			return
		case events, ok := <-snapshots:
			if !ok || !send(streamMessage{Type: "snapshot", Data: events}) {
				return
			}
		case n, ok := <-notes:
			if !ok || !send(streamMessage{Type: "notification", Data: n}) {
				return
			}
		case s, ok := <-severe:
			if !ok || !send(streamMessage{Type: "severe_alert", Data: s}) {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
