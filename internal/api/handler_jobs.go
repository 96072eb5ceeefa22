package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// PostNoShowSweep handles POST /api/jobs/noshow/run. The configured grace
// window can be overridden per call with ?grace_minutes=N.
func (h *Handler) PostNoShowSweep(graceDefault time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		grace := graceDefault
		if raw := c.Query("grace_minutes"); raw != "" {
			minutes, err := strconv.Atoi(raw)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid grace_minutes"})
				return
			}
			grace = time.Duration(minutes) * time.Minute
		}

		updated, err := h.engine.SweepNoShows(c.Request.Context(), grace)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"updatedCount": updated})
	}
}
