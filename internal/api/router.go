package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"blooddrive-queue-backend/config"
	"blooddrive-queue-backend/internal/engine"
	"blooddrive-queue-backend/internal/mw"
	"blooddrive-queue-backend/internal/realtime"
	"blooddrive-queue-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.ServerConfig, e *engine.Engine, s store.Store, hub *realtime.Hub, sweepGrace time.Duration) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(e, s, hub)

	rateLimiter := mw.NewIPRateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(mw.RateLimit(rateLimiter))
	{
		api.POST("/checkin", handler.PostCheckIn)

		api.POST("/stations/:id/advance", handler.PostAdvance)
		api.PATCH("/stations/:id", handler.PatchStation)

		api.POST("/events", handler.PostEvent)
		api.GET("/events", caching, handler.GetEvents)
		api.POST("/events/:id/stations", handler.PostStation)
		api.POST("/events/:id/appointments", handler.PostAppointment)

		// Projections and KPIs are rebuilt on every request; caching them
		// would surface stale queue positions.
		api.GET("/events/:id/queue", handler.GetQueue)
		api.GET("/events/:id/kpi", handler.GetKpis)
		api.GET("/events/:id/queue/stream", handler.GetQueueStream)
		api.GET("/events/:id/kpi/stream", handler.GetKpiStream)

		api.POST("/jobs/noshow/run", handler.PostNoShowSweep(sweepGrace))

		api.PUT("/push_subscriptions", handler.PutSubscription)
		api.DELETE("/push_subscriptions", handler.DeleteSubscription)
	}

	return r
}
