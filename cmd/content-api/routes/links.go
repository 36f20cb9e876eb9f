package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/lyzr/cookbook/cmd/content-api/container"
	"github.com/lyzr/cookbook/cmd/content-api/handlers"
)

// RegisterLinkRoutes registers the internal link engine routes
func RegisterLinkRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewLinkHandler(c)

	links := e.Group("/api/links")
	{
		links.POST("/insert", h.Insert)   // POST /api/links/insert
		links.POST("/remove", h.Remove)   // POST /api/links/remove
		links.POST("/extract", h.Extract) // POST /api/links/extract
		links.POST("/suggest", h.Suggest) // POST /api/links/suggest
		links.GET("/slug", h.Slug)        // GET /api/links/slug?text=Beef+Stew
	}
}
