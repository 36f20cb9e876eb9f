package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/lyzr/cookbook/cmd/content-api/container"
	"github.com/lyzr/cookbook/cmd/content-api/handlers"
	commonmw "github.com/lyzr/cookbook/common/middleware"
)

// RegisterUploadRoutes registers the multi-destination upload routes
func RegisterUploadRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewUploadHandler(c)

	up := e.Group("/api/upload")

	// Redis-backed limits; both fail open when Redis misbehaves
	rl := c.Components.Config.RateLimit
	if rl.Enabled && c.RateLimiter != nil {
		up.Use(commonmw.GlobalRateLimitMiddleware(c.RateLimiter, int64(rl.Global)))
		up.Use(commonmw.UserRateLimitMiddleware(c.RateLimiter, int64(rl.User)))
	}

	{
		up.POST("", h.Upload)    // POST /api/upload
		up.PUT("", h.UploadMany) // PUT /api/upload
		up.DELETE("", h.Delete)  // DELETE /api/upload
	}
}
