package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lyzr/cookbook/cmd/content-api/container"
	"github.com/lyzr/cookbook/cmd/content-api/models"
	"github.com/lyzr/cookbook/cmd/content-api/repository"
	"github.com/lyzr/cookbook/cmd/content-api/service"
	"github.com/lyzr/cookbook/common/linker"
	"github.com/lyzr/cookbook/common/logger"
	"github.com/lyzr/cookbook/common/validation"
)

// DocumentHandler handles the document catalog
type DocumentHandler struct {
	documents *service.DocumentService
	log       *logger.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(c *container.Container) *DocumentHandler {
	return &DocumentHandler{
		documents: c.DocumentService,
		log:       c.Components.Logger,
	}
}

// ListDocuments lists all documents
// GET /api/documents
func (h *DocumentHandler) ListDocuments(c echo.Context) error {
	if h.documents == nil {
		return documentsUnavailable()
	}

	docs, err := h.documents.List(c.Request().Context())
	if err != nil {
		return h.documentError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"documents": docs,
		"count":     len(docs),
	})
}

// GetDocument retrieves one document
// GET /api/documents/:id
func (h *DocumentHandler) GetDocument(c echo.Context) error {
	if h.documents == nil {
		return documentsUnavailable()
	}

	doc, err := h.documents.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.documentError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"document": doc,
	})
}

// CreateDocument creates a document
// POST /api/documents
func (h *DocumentHandler) CreateDocument(c echo.Context) error {
	if h.documents == nil {
		return documentsUnavailable()
	}

	var doc models.Document
	if err := c.Bind(&doc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	created, err := h.documents.Create(c.Request().Context(), &doc)
	if err != nil {
		return h.documentError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"document": created,
	})
}

// PatchDocument applies a JSON merge patch to a document
// PATCH /api/documents/:id
func (h *DocumentHandler) PatchDocument(c echo.Context) error {
	if h.documents == nil {
		return documentsUnavailable()
	}

	patch, err := io.ReadAll(c.Request().Body)
	if err != nil || len(patch) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "merge patch body is required")
	}

	doc, err := h.documents.Patch(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return h.documentError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"document": doc,
	})
}

// ApplyLinks inserts internal links into a document body
// POST /api/documents/:id/links
func (h *DocumentHandler) ApplyLinks(c echo.Context) error {
	if h.documents == nil {
		return documentsUnavailable()
	}

	var req struct {
		Insertions []linker.Insertion `json:"insertions"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Insertions) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "insertions array is required and cannot be empty")
	}

	doc, added, err := h.documents.ApplyLinks(c.Request().Context(), c.Param("id"), req.Insertions)
	if err != nil {
		return h.documentError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"document": doc,
		"added":    added,
	})
}

func documentsUnavailable() error {
	return echo.NewHTTPError(http.StatusServiceUnavailable, "document catalog is not configured")
}

func (h *DocumentHandler) documentError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrDocumentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "document not found")
	case errors.Is(err, repository.ErrDuplicateSlug):
		return echo.NewHTTPError(http.StatusConflict, "slug already in use")
	case errors.Is(err, repository.ErrDuplicateID):
		return echo.NewHTTPError(http.StatusConflict, "document id already exists")
	case errors.Is(err, service.ErrInvalidDocument), validation.IsValidationError(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	h.log.WithContext(c.Request().Context()).Error("document operation failed", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
