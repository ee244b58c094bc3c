package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/lastcrumb/surplusbag/internal/config"
	"github.com/lastcrumb/surplusbag/internal/handler"
	"github.com/lastcrumb/surplusbag/internal/middleware"
)

// RegisterRoutes registers routes that require no authentication on the
// provided Echo instance: the health check and the scheduler-facing sweep
// trigger, which carries its own shared-secret guard.
func RegisterRoutes(e *echo.Echo, sweep *handler.SweepHandler) {
	// Load balancers and monitoring hit this endpoint.
	e.GET("/healthz", handler.Health)
	// The cron scheduler posts here; the handler checks X-Sweep-Secret.
	e.POST("/internal/sweep", sweep.RunSweep)
}

// RegisterPublic registers unauthenticated browse endpoints.  Guests can
// check a restaurant's availability before signing in to reserve.  The
// availability response is served through the Redis response cache when
// caching is enabled; the TTL is short enough that remaining-unit counts
// stay close to live.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, rdb *redis.Client) {
	g := e.Group("/v1")
	if rdb != nil {
		g.Use(middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	}
	g.GET("/restaurants/:id/availability", p.GetAvailability)
}
