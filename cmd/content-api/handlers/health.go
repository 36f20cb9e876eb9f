package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lyzr/cookbook/cmd/content-api/container"
	"github.com/lyzr/cookbook/common/bootstrap"
)

// HealthHandler reports service health
type HealthHandler struct {
	components *bootstrap.Components
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(c *container.Container) *HealthHandler {
	return &HealthHandler{components: c.Components}
}

// Health checks the database and Redis
// GET /health
func (h *HealthHandler) Health(c echo.Context) error {
	service := h.components.Config.Service.Name

	if err := h.components.Health(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status":  "unhealthy",
			"service": service,
			"error":   err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"service": service,
	})
}
