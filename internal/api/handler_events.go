package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"blooddrive-queue-backend/internal/model"
)

type createEventRequest struct {
	Name        string     `json:"name" binding:"required"`
	TargetUnits int        `json:"targetUnits" binding:"required"`
	StartAt     time.Time  `json:"startAt" binding:"required"`
	EndAt       *time.Time `json:"endAt"`
}

// PostEvent handles POST /api/events.
func (h *Handler) PostEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event := model.Event{
		Name:        req.Name,
		TargetUnits: req.TargetUnits,
		StartAt:     req.StartAt,
		EndAt:       req.EndAt,
	}
	if err := h.store.CreateEvent(c.Request.Context(), &event); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"event": event})
}

// GetEvents handles GET /api/events.
func (h *Handler) GetEvents(c *gin.Context) {
	events, err := h.store.ListEvents(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

type createStationRequest struct {
	Type model.StationType `json:"type" binding:"required,oneof=SCREENING DONATION"`
}

// PostStation handles POST /api/events/:id/stations.
func (h *Handler) PostStation(c *gin.Context) {
	var req createStationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.store.GetEvent(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}

	station := model.Station{
		EventID:  c.Param("id"),
		Type:     req.Type,
		IsActive: true,
	}
	if err := h.store.CreateStation(c.Request.Context(), &station); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"station": station})
}

type createAppointmentRequest struct {
	DonorToken string    `json:"donorToken" binding:"required"`
	DonorName  string    `json:"donorName"`
	SlotTime   time.Time `json:"slotTime" binding:"required"`
}

// PostAppointment handles POST /api/events/:id/appointments (booking).
func (h *Handler) PostAppointment(c *gin.Context) {
	var req createAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.GetEvent(ctx, c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}

	donor, err := h.store.FindOrCreateDonor(ctx, req.DonorToken, req.DonorName)
	if err != nil {
		abortWithError(c, err)
		return
	}

	appt := model.Appointment{
		EventID:  c.Param("id"),
		DonorID:  donor.ID,
		Status:   model.StatusBooked,
		SlotTime: req.SlotTime,
	}
	if err := h.store.CreateAppointment(ctx, &appt); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"appointment": appt})
}

// GetQueue handles GET /api/events/:id/queue.
func (h *Handler) GetQueue(c *gin.Context) {
	projection, err := h.engine.Projection(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, projection)
}

// GetKpis handles GET /api/events/:id/kpi.
func (h *Handler) GetKpis(c *gin.Context) {
	snapshot, err := h.engine.Kpis(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}
