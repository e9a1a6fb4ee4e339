package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"snipewatch/internal/models"
	"snipewatch/internal/tracker"
	"snipewatch/pkg/solana/stream"
)

// StatusSource is satisfied by *tracker.Controller.
type StatusSource interface {
	Status() tracker.Status
	SwitchTarget(ctx context.Context, address, source string) error
}

// StateSource is satisfied by *stream.Manager.
type StateSource interface {
	State() stream.State
	Target() string
}

// EventSource is satisfied by *journal.Journal.
type EventSource interface {
	Recent(ctx context.Context, limit int, kind string) ([]models.WatchEvent, error)
}

// API serves the watcher's status endpoints.
type API struct {
	controller StatusSource
	stream     StateSource
	events     EventSource
}

// NewAPI builds the handlers. events may be nil when no journal is configured.
func NewAPI(controller StatusSource, stream StateSource, events EventSource) *API {
	return &API{controller: controller, stream: stream, events: events}
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	tracker.Status
	Connection   stream.State `json:"connection"`
	StreamTarget string       `json:"stream_target"`
}

// SwitchTargetRequest is the body of POST /target.
type SwitchTargetRequest struct {
	Address string `json:"address" binding:"required"`
}

// Health reports liveness and the connection state.
func (a *API) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"connection": a.stream.State(),
	})
}

// GetStatus returns the current WatchTarget snapshot.
func (a *API) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		Status:       a.controller.Status(),
		Connection:   a.stream.State(),
		StreamTarget: a.stream.Target(),
	})
}

// ListEvents returns journaled events, newest first.
func (a *API) ListEvents(c *gin.Context) {
	if a.events == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event journal is not configured"})
		return
	}

	limit := 0
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	events, err := a.events.Recent(c.Request.Context(), limit, c.Query("kind"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": events, "count": len(events)})
}

// SwitchTarget retargets the watcher manually.
func (a *API) SwitchTarget(c *gin.Context) {
	var req SwitchTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := a.controller.SwitchTarget(c.Request.Context(), req.Address, tracker.SourceManual); err != nil {
		if errors.Is(err, tracker.ErrInvalidAddress) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"target": a.controller.Status().Target})
}
