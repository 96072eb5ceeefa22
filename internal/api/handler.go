package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"blooddrive-queue-backend/internal/engine"
	"blooddrive-queue-backend/internal/realtime"
	"blooddrive-queue-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	engine *engine.Engine
	store  store.Store
	hub    *realtime.Hub
}

// NewHandler creates a new API handler.
func NewHandler(e *engine.Engine, s store.Store, hub *realtime.Hub) *Handler {
	return &Handler{
		engine: e,
		store:  s,
		hub:    hub,
	}
}

// abortWithError maps the store error taxonomy onto status-code classes:
// unresolved references are 404, lost optimistic races are 409, everything
// else is a generic 500.
func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrEventNotFound),
		errors.Is(err, store.ErrStationNotFound),
		errors.Is(err, store.ErrDonorNotFound),
		errors.Is(err, store.ErrAppointmentNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrConflict):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
