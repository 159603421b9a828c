package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wifientist/rtools2-sub002/internal/platform/ctxutil"
	"github.com/wifientist/rtools2-sub002/internal/platform/logger"
	"github.com/wifientist/rtools2-sub002/internal/realtime"
)

// RealtimeHandler bridges one HTTP connection to realtime.SSEHub.
// Grounded on the teacher's internal/http/handlers/realtime.go for the
// connect/subscribe/unsubscribe shape, but internal/realtime.SSEHub has no
// ServeHTTP of its own (unlike the teacher's sse.SSEHub), so the
// text/event-stream write loop below is hand-written rather than adapted.
type RealtimeHandler struct {
	log *logger.Logger
	hub *realtime.SSEHub
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub) *RealtimeHandler {
	return &RealtimeHandler{log: log.With("component", "RealtimeHandler"), hub: hub}
}

// GET /api/jobs/:id/events
//
// Opens one SSE connection subscribed to a single job's channel — the
// Brain's SSE channel naming convention is the job id (internal/events's
// publisher broadcasts with Channel: jobID), so a client only ever needs
// the one job it's watching, unlike the teacher's session-wide
// multi-channel hub built for a whole UI's worth of notifications.
func (h *RealtimeHandler) SubscribeJob(c *gin.Context) {
	jobID := c.Param("id")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing job id"})
		return
	}
	userID, _ := ctxutil.GetUserID(c.Request.Context())

	client := h.hub.NewSSEClient(userID)
	h.hub.AddChannel(client, jobID)
	defer h.hub.CloseClient(client)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	flusher, canFlush := c.Writer.(http.Flusher)

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, open := <-client.Outbound:
			if !open {
				return
			}
			data, err := json.Marshal(msg.Data)
			if err != nil {
				h.log.Warn("sse: marshal event data failed", "error", err, "job_id", jobID)
				continue
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", msg.Event, data)
			if canFlush {
				flusher.Flush()
			}
		}
	}
}
