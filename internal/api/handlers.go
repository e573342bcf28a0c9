package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"homepal-gateway/internal/lifecycle"
	"homepal-gateway/internal/models"
	"homepal-gateway/internal/transport"
)

// EventReader is the store slice the read endpoints need.
type EventReader interface {
	RecentEvents(ctx context.Context, limit int) ([]models.RawEvent, error)
	MarkHandled(ctx context.Context, id string) (bool, error)
}

// Pipeline is the gateway slice the write/status endpoints need.
type Pipeline interface {
	Enqueue(rec transport.Record)
	RequestPermission() bool
	State() lifecycle.State
	IsConnected() bool
}

type Handler struct {
	events   EventReader
	pipeline Pipeline
	logger   *logrus.Logger
}

func NewHandler(events EventReader, pipeline Pipeline, logger *logrus.Logger) *Handler {
	return &Handler{events: events, pipeline: pipeline, logger: logger}
}

// GetStatus reports push-transport connectivity for the dashboard's "system
// online" indicator; the UI polls this every few seconds.
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected": h.pipeline.IsConnected(),
		"state":     h.pipeline.State().String(),
	})
}

// GetEvents serves the recent-events window; the dashboard's REST fallback
// when the live connection is down.
func (h *Handler) GetEvents(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer between 1 and 200"})
			return
		}
		limit = n
	}

	events, err := h.events.RecentEvents(c.Request.Context(), limit)
	if err != nil {
		h.logger.Errorf("Get events failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if events == nil {
		events = []models.RawEvent{}
	}
	c.JSON(http.StatusOK, events)
}

// IngestEvent accepts an event over HTTP and feeds it into the pipeline.
// Records without an id get one assigned.
func (h *Handler) IngestEvent(c *gin.Context) {
	var ev models.RawEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		h.logger.Warnf("Invalid event payload: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}

	h.pipeline.Enqueue(transport.Record{Event: ev, Source: transport.SourceAPI})
	c.JSON(http.StatusAccepted, gin.H{"id": ev.ID})
}

// HandleEvent records a caregiver acknowledgment.
func (h *Handler) HandleEvent(c *gin.Context) {
	id := c.Param("id")
	ok, err := h.events.MarkHandled(c.Request.Context(), id)
	if err != nil {
		h.logger.Errorf("Mark event %s handled failed: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "isHandled": true})
}

// RequestPermission resolves the native-delivery permission state and
// returns the result, mirroring the browser permission prompt.
func (h *Handler) RequestPermission(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"granted": h.pipeline.RequestPermission()})
}
