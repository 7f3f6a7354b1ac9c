package api

import (
	"github.com/gin-gonic/gin"

	"responsa/internal/config"
	"responsa/pkg/ratelimiter"
)

// SetupRouter configures and returns the gin engine.
func SetupRouter(h *Handler, cfg *config.MiddlewareConfig) *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", h.HealthHandler)

	apiV1 := r.Group("/api/v1")
	if cfg.RateLimiter.Enabled {
		limiter := ratelimiter.NewTokenBucket(cfg.RateLimiter.Rate, cfg.RateLimiter.Capacity)
		apiV1.Use(RateLimit(limiter))
	}
	{
		apiV1.GET("/search", h.SearchHandler)

		entries := apiV1.Group("/entries")
		{
			entries.POST("", h.CreateQuestionHandler)
			entries.GET("/:id", h.GetEntryHandler)
			entries.PUT("/:id", h.UpdateEntryHandler)
			entries.DELETE("/:id", h.DeleteEntryHandler)
			entries.POST("/:id/link", h.LinkAnswerHandler)
			entries.GET("/:id/audio", h.AudioHandler)
		}

		feedback := apiV1.Group("/feedback")
		{
			feedback.POST("", h.SubmitFeedbackHandler)
			feedback.GET("/stats", h.FeedbackStatsHandler)
		}
	}

	return r
}
