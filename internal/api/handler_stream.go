package api

import (
	"io"

	"github.com/gin-gonic/gin"

	"blooddrive-queue-backend/internal/realtime"
)

// GetQueueStream handles GET /api/events/:id/queue/stream (SSE).
func (h *Handler) GetQueueStream(c *gin.Context) {
	h.stream(c, realtime.QueueChannel(c.Param("id")))
}

// GetKpiStream handles GET /api/events/:id/kpi/stream (SSE).
func (h *Handler) GetKpiStream(c *gin.Context) {
	h.stream(c, realtime.KpiChannel(c.Param("id")))
}

// stream forwards hub messages for one channel to the client as
// server-sent events until the client disconnects.
func (h *Handler) stream(c *gin.Context, channel string) {
	messages, cancel := h.hub.Subscribe(channel)
	defer cancel()

	c.Header("Cache-Control", "no-store")
	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-messages:
			if !ok {
				return false
			}
			c.SSEvent("message", string(msg))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
