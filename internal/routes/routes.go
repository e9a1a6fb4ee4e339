package routes

import (
	"context"

	"github.com/gin-gonic/gin"

	"snipewatch/internal/handlers"
	"snipewatch/internal/middleware"
	"snipewatch/pkg/metrics"
)

// SetupRouter wires the status API. The rate limiter's sweeper lives until ctx is done.
func SetupRouter(ctx context.Context, api *handlers.API, limits middleware.RateLimiterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", api.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	limited := r.Group("/")
	limited.Use(middleware.RateLimiterMiddleware(ctx, limits))
	{
		limited.GET("/status", api.GetStatus)
		limited.GET("/events", api.ListEvents)
		limited.POST("/target", api.SwitchTarget)
	}

	return r
}
