package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"villagelink/internal/fleet"
)

const streamHeartbeat = 15 * time.Second

// StreamHandler serves the live fleet stream over server-sent events.
type StreamHandler struct {
	hub *fleet.Hub
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(hub *fleet.Hub) *StreamHandler {
	return &StreamHandler{hub: hub}
}

// Stream handles GET /v1/stream. The first event is a snapshot; every later
// event is a delta. A client that reconnects receives a fresh snapshot.
func (h *StreamHandler) Stream(c *gin.Context) {
	sub, err := h.hub.Subscribe()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
		return
	}
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case evt, ok := <-sub.Events():
			if !ok {
				return false
			}
			c.SSEvent(string(evt.Type), evt.Wire())
			return true
		case <-heartbeat.C:
			c.SSEvent("heartbeat", gin.H{"dropped": sub.Dropped()})
			return true
		}
	})
}
