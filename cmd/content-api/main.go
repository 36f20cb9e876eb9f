package main

import (
	"context"
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/lyzr/cookbook/cmd/content-api/container"
	"github.com/lyzr/cookbook/cmd/content-api/handlers"
	"github.com/lyzr/cookbook/cmd/content-api/middleware"
	"github.com/lyzr/cookbook/cmd/content-api/routes"
	"github.com/lyzr/cookbook/common/bootstrap"
	"github.com/lyzr/cookbook/common/server"
)

const serviceName = "content-api"

func main() {
	ctx := context.Background()

	// Bootstrap common components (DB, logger, redis, cache, telemetry)
	components, err := bootstrap.Setup(ctx, serviceName, bootstrap.WithSchemaMigration())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap %s: %v\n", serviceName, err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	// Initialize service container (singleton pattern - all services created once)
	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize service container: %v\n", err)
		os.Exit(1)
	}

	e := newEcho(serviceContainer)

	// Start server
	startServer(e, components)
}

// newEcho builds the Echo server with middleware and all routes
func newEcho(c *container.Container) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	setupMiddleware(e, c)
	setupHealthCheck(e, c)
	registerRoutes(e, c)

	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo, c *container.Container) {
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(echomw.RequestID())
	e.Use(middleware.PropagateRequestID())
	e.Use(echomw.BodyLimit(c.Components.Config.Service.BodyLimit))
	e.Use(middleware.ExtractUsername())
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo, c *container.Container) {
	e.GET("/health", handlers.NewHealthHandler(c).Health)
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, c *container.Container) {
	routes.RegisterUploadRoutes(e, c)
	routes.RegisterLinkRoutes(e, c)
	routes.RegisterDocumentRoutes(e, c)
}

// startServer serves Echo until SIGINT/SIGTERM, then drains in-flight requests
func startServer(e *echo.Echo, components *bootstrap.Components) {
	port := components.Config.Service.Port
	components.Logger.Info("Starting content-api", "port", port)

	srv := server.New(serviceName, port, e, components.Logger)
	if err := srv.Start(); err != nil {
		components.Logger.Error("Server error", "error", err)
		components.Shutdown(context.Background())
		os.Exit(1)
	}
}
