package middleware

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/lyzr/cookbook/common/clients"
	"github.com/lyzr/cookbook/common/logger"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// UsernameKey is the echo context key for the caller's username.
	// The shared rate limit middleware reads the same key.
	UsernameKey ContextKey = "username"
)

// ExtractUsername is a middleware that extracts the X-User-ID header
// and stores it in the echo context and the request context.
//
// Usage:
//
//	e := echo.New()
//	e.Use(middleware.ExtractUsername())
//
// Accessing in handlers:
//
//	username := middleware.GetUsername(c)
func ExtractUsername() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			username := c.Request().Header.Get(clients.HeaderUserID)

			// Anonymous requests are allowed; they skip per-user rate limits
			if username != "" {
				c.Set(string(UsernameKey), username)
				ctx := clients.WithUserID(c.Request().Context(), username)
				ctx = context.WithValue(ctx, logger.UserKey, username)
				c.SetRequest(c.Request().WithContext(ctx))
			}

			return next(c)
		}
	}
}

// PropagateRequestID copies the request id set by echo's RequestID
// middleware into the request context so logger.WithContext picks it up.
// Must run after middleware.RequestID.
func PropagateRequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Response().Header().Get(echo.HeaderXRequestID)
			if id == "" {
				id = c.Request().Header.Get(echo.HeaderXRequestID)
			}
			if id != "" {
				ctx := context.WithValue(c.Request().Context(), logger.RequestIDKey, id)
				ctx = clients.WithRequestID(ctx, id)
				c.SetRequest(c.Request().WithContext(ctx))
			}
			return next(c)
		}
	}
}

// GetUsername retrieves the username from the request context
// Returns empty string if not set
func GetUsername(c echo.Context) string {
	username, _ := c.Get(string(UsernameKey)).(string)
	return username
}
