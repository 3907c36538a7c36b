package handlers

import (
	"encoding/json"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/peerlobby/pkg/lobby"
)

const heartbeatInterval = 30 * time.Second

// EventsHandler streams lobby snapshots to HTTP clients.
type EventsHandler struct {
	svc lobby.Service
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(svc lobby.Service) *EventsHandler {
	return &EventsHandler{svc: svc}
}

// Events handles GET /lobby/events (SSE stream)
// @Summary      Subscribe to lobby state
// @Description  Server-Sent Events stream of lobby snapshots, one per state change
// @Tags         lobby
// @Produce      text/event-stream
// @Success      200  {string}  string  "SSE event stream"
// @Router       /lobby/events [get]
func (h *EventsHandler) Events(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	snapshots := h.svc.Subscribe()
	defer h.svc.Unsubscribe(snapshots)

	sendSSEEvent(c.Writer, "state", h.svc.State())
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-clientGone:
			return

		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			sendSSEEvent(c.Writer, "state", snap)
			c.Writer.Flush()

		case <-ticker.C:
			sendSSEEvent(c.Writer, "heartbeat", map[string]any{
				"timestamp": time.Now(),
			})
			c.Writer.Flush()
		}
	}
}

// sendSSEEvent writes an SSE event to the response
func sendSSEEvent(w io.Writer, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	io.WriteString(w, "event: "+eventType+"\n")
	io.WriteString(w, "data: "+string(jsonData)+"\n\n")
}
