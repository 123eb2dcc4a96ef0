package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/go-quake-alerts/internal/core"
	"github.com/mr1hm/go-quake-alerts/internal/dispatch"
	"github.com/mr1hm/go-quake-alerts/internal/models"
	"github.com/mr1hm/go-quake-alerts/internal/settings"
	"github.com/mr1hm/go-quake-alerts/internal/sms"
)

type Handler struct {
	app *core.App
}

func NewHandler(app *core.App) *Handler {
	return &Handler{app: app}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/ws", h.stream)

	api := r.Group("/api")
	api.GET("/events", h.getEvents)

	api.GET("/severe-alert", h.getSevereAlert)
	api.DELETE("/severe-alert", h.dismissSevereAlert)

	api.GET("/alerts", h.getAlerts)
	api.GET("/alerts/latest", h.getLatestAlert)
	api.POST("/alerts/:id/broadcast", h.sendBroadcast)

	api.GET("/broadcast/topic", h.getTopic)
	api.PUT("/broadcast/topic", h.setTopic)

	api.GET("/settings", h.getSettings)
	api.PATCH("/settings", h.updateSettings)

	api.GET("/theme", h.getTheme)
	api.PUT("/theme", h.setTheme)

	api.GET("/sms", h.getSMS)
	api.POST("/sms/subscribe", h.subscribeSMS)
	api.POST("/sms/unsubscribe", h.unsubscribeSMS)

	api.GET("/notification", h.getNotification)
	api.DELETE("/notification", h.dismissNotification)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) getEvents(c *gin.Context) {
	events := h.app.Events()

	if m := c.Query("min_magnitude"); m != "" {
		if mag, err := strconv.ParseFloat(m, 64); err == nil {
			filtered := events[:0]
			for _, e := range events {
				if e.Magnitude >= mag {
					filtered = append(filtered, e)
				}
			}
			events = filtered
		}
	}
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim < len(events) {
			events = events[:lim]
		}
	}

	if strings.EqualFold(c.Query("format"), "geojson") {
		c.Header("Content-Type", "application/geo+json")
		c.JSON(http.StatusOK, toGeoJSON(events))
		return
	}
	if events == nil {
		events = []models.SeismicEvent{}
	}
	c.JSON(http.StatusOK, events)
}

func (h *Handler) getSevereAlert(c *gin.Context) {
	event, ok := h.app.Severe().Current()
	if !ok {
		c.JSON(http.StatusOK, core.SevereAlert{Active: false})
		return
	}
	c.JSON(http.StatusOK, core.SevereAlert{Active: true, Event: &event})
}

func (h *Handler) dismissSevereAlert(c *gin.Context) {
	h.app.Severe().Dismiss()
	c.Status(http.StatusNoContent)
}

func (h *Handler) getAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, h.app.Dispatch().Entries())
}

func (h *Handler) getLatestAlert(c *gin.Context) {
	entry, ok := h.app.Dispatch().LatestSent()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no alert has been sent yet"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

// sendBroadcast moves the entry to sending before responding; delivery
// completes in the background and is visible through the alert log.
func (h *Handler) sendBroadcast(c *gin.Context) {
	id := c.Param("id")

	err := h.app.SendBroadcast(c.Request.Context(), id)
	switch {
	case err == nil:
		entry, _ := h.app.Dispatch().Get(id)
		c.JSON(http.StatusAccepted, entry)
	case errors.Is(err, dispatch.ErrChannelNotReady):
		if _, ok := h.app.Dispatch().Get(id); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, dispatch.ErrInFlight), errors.Is(err, dispatch.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send broadcast"})
	}
}

type topicRequest struct {
	Topic string `json:"topic"`
}

func (h *Handler) getTopic(c *gin.Context) {
	topic := h.app.Dispatch().Topic()
	c.JSON(http.StatusOK, gin.H{"topic": topic, "configured": topic != ""})
}

func (h *Handler) setTopic(c *gin.Context) {
	var req topicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.ContainsAny(req.Topic, "/?#") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "topic must be a single path segment"})
		return
	}
	h.app.Dispatch().SetTopic(req.Topic)
	topic := h.app.Dispatch().Topic()
	c.JSON(http.StatusOK, gin.H{"topic": topic, "configured": topic != ""})
}

func (h *Handler) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.app.Settings().Get())
}

func (h *Handler) updateSettings(c *gin.Context) {
	var patch models.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	updated, err := h.app.Settings().Update(c.Request.Context(), patch)
	if err != nil {
		if errors.Is(err, settings.ErrInvalidSettings) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update settings"})
		return
	}
	c.JSON(http.StatusOK, updated)
}

type themeRequest struct {
	Theme models.Theme `json:"theme"`
}

func (h *Handler) getTheme(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"theme": h.app.Store().LoadTheme(c.Request.Context())})
}

func (h *Handler) setTheme(c *gin.Context) {
	var req themeRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Theme.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "theme must be light or dark"})
		return
	}
	h.app.Store().SaveTheme(c.Request.Context(), req.Theme)
	c.JSON(http.StatusOK, gin.H{"theme": req.Theme})
}

type smsRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

type smsResponse struct {
	Status      models.SmsStatus `json:"status"`
	PhoneNumber string           `json:"phoneNumber,omitempty"`
}

func (h *Handler) smsState() smsResponse {
	status, phone := h.app.SMS().Status()
	return smsResponse{Status: status, PhoneNumber: phone}
}

func (h *Handler) getSMS(c *gin.Context) {
	c.JSON(http.StatusOK, h.smsState())
}

// subscribeSMS reports gateway failures through the returned status and the
// notification slot, not the HTTP status.
func (h *Handler) subscribeSMS(c *gin.Context) {
	var req smsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.app.SMS().Subscribe(c.Request.Context(), req.PhoneNumber); err != nil {
		h.smsError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.smsState())
}

func (h *Handler) unsubscribeSMS(c *gin.Context) {
	if err := h.app.SMS().Unsubscribe(c.Request.Context()); err != nil {
		h.smsError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.smsState())
}

func (h *Handler) smsError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, sms.ErrInvalidPhoneNumber):
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone number must be in E.164 format, e.g. +15551234567"})
	case errors.Is(err, sms.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sms request failed"})
	}
}

func (h *Handler) getNotification(c *gin.Context) {
	n, ok := h.app.Notifications().Current()
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *Handler) dismissNotification(c *gin.Context) {
	h.app.Notifications().Dismiss()
	c.Status(http.StatusNoContent)
}
