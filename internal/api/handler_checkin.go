package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type checkInRequest struct {
	EventID    string `json:"eventId" binding:"required"`
	DonorToken string `json:"donorToken" binding:"required"`
}

// PostCheckIn handles POST /api/checkin.
func (h *Handler) PostCheckIn(c *gin.Context) {
	var req checkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ticket, err := h.engine.CheckIn(c.Request.Context(), req.EventID, req.DonorToken)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ticket": ticket})
}
