package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"blooddrive-queue-backend/internal/store"
)

// PostAdvance handles POST /api/stations/:id/advance. An empty queue is a
// normal outcome, not an error.
func (h *Handler) PostAdvance(c *gin.Context) {
	result, err := h.engine.Advance(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNoDonorsWaiting) {
			c.JSON(http.StatusOK, gin.H{"message": "No donors waiting"})
			return
		}
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"appointment":    result.Appointment,
		"previousStatus": result.PreviousStatus,
		"nextStatus":     result.NextStatus,
	})
}

type patchStationRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

// PatchStation handles PATCH /api/stations/:id (active flag toggle).
func (h *Handler) PatchStation(c *gin.Context) {
	var req patchStationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "`isActive` boolean field required"})
		return
	}

	station, err := h.engine.ToggleStation(c.Request.Context(), c.Param("id"), *req.IsActive)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"station": station})
}
