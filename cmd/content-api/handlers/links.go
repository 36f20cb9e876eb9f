package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lyzr/cookbook/cmd/content-api/container"
	"github.com/lyzr/cookbook/cmd/content-api/service"
	"github.com/lyzr/cookbook/common/linker"
	"github.com/lyzr/cookbook/common/logger"
	"github.com/lyzr/cookbook/common/validation"
)

// LinkHandler exposes the internal link engine
type LinkHandler struct {
	links *service.LinkService
	log   *logger.Logger
}

// NewLinkHandler creates a new link handler
func NewLinkHandler(c *container.Container) *LinkHandler {
	return &LinkHandler{
		links: c.LinkService,
		log:   c.Components.Logger,
	}
}

type contentRequest struct {
	Content    string                `json:"content"`
	Insertions []linker.Insertion    `json:"insertions"`
	Filter     string                `json:"filter"`
	Catalog    []linker.CatalogEntry `json:"catalog"`
}

// Insert links keywords in the supplied content
// POST /api/links/insert
func (h *LinkHandler) Insert(c echo.Context) error {
	var req contentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	out, err := h.links.Insert(req.Content, req.Insertions)
	if err != nil {
		if validation.IsValidationError(err) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to insert links")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"content": out,
	})
}

// Remove strips internal links from the supplied content
// POST /api/links/remove
func (h *LinkHandler) Remove(c echo.Context) error {
	var req contentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"content": h.links.Remove(req.Content),
	})
}

// Extract lists internal links in the supplied content
// POST /api/links/extract
func (h *LinkHandler) Extract(c echo.Context) error {
	var req contentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"links": h.links.Extract(req.Content),
	})
}

// Suggest proposes links from the catalog, optionally narrowed by a CEL filter
// POST /api/links/suggest
func (h *LinkHandler) Suggest(c echo.Context) error {
	ctx := c.Request().Context()

	var req contentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	suggestions, err := h.links.Suggest(ctx, req.Content, req.Filter, req.Catalog)
	if err != nil {
		if errors.Is(err, service.ErrInvalidFilter) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		h.log.WithContext(ctx).Error("failed to suggest links", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to suggest links")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"suggestions": suggestions,
	})
}

// Slug converts text into a URL slug
// GET /api/links/slug?text=
func (h *LinkHandler) Slug(c echo.Context) error {
	text := c.QueryParam("text")
	if text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"slug": h.links.Slug(text),
	})
}
