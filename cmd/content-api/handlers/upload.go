package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/lyzr/cookbook/cmd/content-api/container"
	"github.com/lyzr/cookbook/cmd/content-api/service"
	"github.com/lyzr/cookbook/common/logger"
	"github.com/lyzr/cookbook/common/upload"
	"github.com/lyzr/cookbook/common/validation"
)

// UploadHandler handles asset uploads and deletions
type UploadHandler struct {
	uploads *service.UploadService
	log     *logger.Logger
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(c *container.Container) *UploadHandler {
	return &UploadHandler{
		uploads: c.UploadService,
		log:     c.Components.Logger,
	}
}

// Upload stores a single file in every destination
// POST /api/upload
func (h *UploadHandler) Upload(c echo.Context) error {
	ctx := c.Request().Context()
	log := h.log.WithContext(ctx)

	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "No file provided",
		})
	}

	result, err := h.uploads.Upload(ctx, fh, parseBool(c.FormValue("optimize")))
	if err != nil {
		return h.uploadError(c, log, err)
	}

	stored := result.Stored
	resp := map[string]interface{}{
		"success": true,
		"url":     h.uploads.URL(stored.PublicURL),
		"path":    stored.PublicURL,
	}
	if result.WebP != nil {
		resp["originalUrl"] = h.uploads.URL(stored.PublicURL)
		resp["webpUrl"] = h.uploads.URL(result.WebP.PublicURL)
		resp["optimization"] = result.Optimization
	}
	if result.AVIF != nil {
		resp["avifUrl"] = h.uploads.URL(result.AVIF.PublicURL)
	}
	if result.Metadata != nil {
		resp["metadata"] = result.Metadata
	}

	log.Info("file uploaded",
		"file_name", stored.FileName,
		"size", stored.SizeBytes,
		"optimized", result.WebP != nil)

	return c.JSON(http.StatusOK, resp)
}

// UploadMany stores file0..fileN in order, all or nothing
// PUT /api/upload
func (h *UploadHandler) UploadMany(c echo.Context) error {
	ctx := c.Request().Context()
	log := h.log.WithContext(ctx)

	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid multipart form",
		})
	}

	files := make([]*multipart.FileHeader, 0, len(form.File))
	for i := 0; ; i++ {
		parts := form.File[fmt.Sprintf("file%d", i)]
		if len(parts) == 0 {
			break
		}
		files = append(files, parts[0])
	}

	if len(files) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "No files provided",
		})
	}

	stored, err := h.uploads.UploadMany(ctx, files)
	if err != nil {
		return h.uploadError(c, log, err)
	}

	log.Info("batch uploaded", "count", len(stored))

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"uploads": stored,
	})
}

// Delete removes a file from every destination
// DELETE /api/upload
func (h *UploadHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	log := h.log.WithContext(ctx)

	var req struct {
		Path string `json:"path" query:"path"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}

	if strings.TrimSpace(req.Path) == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "No file path provided",
		})
	}

	removed, err := h.uploads.Delete(ctx, req.Path)
	if err != nil {
		return h.uploadError(c, log, err)
	}

	log.Info("file deleted", "path", req.Path)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": removed,
		"message": "File deleted successfully",
	})
}

func (h *UploadHandler) uploadError(c echo.Context, log *logger.Logger, err error) error {
	var ve *validation.ValidationError
	if errors.As(err, &ve) {
		log.Warn("upload rejected", "code", ve.Code, "error", err)
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": ve.Message,
			"code":  ve.Code,
		})
	}

	var se *upload.StorageError
	if errors.As(err, &se) {
		log.Error("storage failure", "destination", se.Destination, "op", se.Op, "error", err)
	} else {
		log.Error("upload failed", "error", err)
	}

	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": "Failed to process file",
	})
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "on", "yes":
		return true
	}
	return false
}
