package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/lyzr/cookbook/cmd/content-api/container"
	"github.com/lyzr/cookbook/cmd/content-api/handlers"
)

// RegisterDocumentRoutes registers the document catalog routes
func RegisterDocumentRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewDocumentHandler(c)

	docs := e.Group("/api/documents")
	{
		docs.GET("", h.ListDocuments)         // GET /api/documents
		docs.POST("", h.CreateDocument)       // POST /api/documents
		docs.GET("/:id", h.GetDocument)       // GET /api/documents/abc
		docs.PATCH("/:id", h.PatchDocument)   // PATCH /api/documents/abc
		docs.POST("/:id/links", h.ApplyLinks) // POST /api/documents/abc/links
	}
}
