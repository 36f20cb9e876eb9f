package middleware

import (
	"net/http"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/lyzr/cookbook/common/ratelimit"
)

// isInternalRequest checks if the request is from an internal service
// Internal services set X-Internal-Service header to bypass rate limits
func isInternalRequest(c echo.Context) bool {
	internalHeader := c.Request().Header.Get("X-Internal-Service")
	if internalHeader == "" {
		return false
	}

	expectedSecret := os.Getenv("INTERNAL_SERVICE_SECRET")
	if expectedSecret == "" {
		return false
	}

	return internalHeader == expectedSecret
}

func setRateLimitHeaders(c echo.Context, result *ratelimit.Decision) {
	h := c.Response().Header()
	h.Set("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
	remaining := result.Limit - result.CurrentCount
	if remaining < 0 {
		remaining = 0
	}
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	if !result.Allowed {
		h.Set("Retry-After", strconv.FormatInt(result.RetryAfterSeconds, 10))
	}
}

// GlobalRateLimitMiddleware checks the global service-wide rate limit
// Skips rate limiting for internal service-to-service calls
func GlobalRateLimitMiddleware(rateLimiter *ratelimit.RateLimiter, limit int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if isInternalRequest(c) {
				return next(c)
			}

			result, err := rateLimiter.CheckGlobalLimit(c.Request().Context(), limit)
			if err != nil {
				// fail open
				return next(c)
			}

			if !result.Allowed {
				setRateLimitHeaders(c, result)
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":   "global_rate_limit_exceeded",
					"message": "Service is experiencing high load. Please try again later.",
					"details": map[string]interface{}{
						"limit":               result.Limit,
						"window":              "60 seconds",
						"retry_after_seconds": result.RetryAfterSeconds,
					},
				})
			}

			return next(c)
		}
	}
}

// UserRateLimitMiddleware checks a per-user counter shared by all tiers and
// then the per-user counter of the request's tier. The shared counter allows
// at least the largest tier allowance, so no tier is capped below its own limit.
// Requires username to be set in context by ExtractUsername middleware
func UserRateLimitMiddleware(rateLimiter *ratelimit.RateLimiter, limit int64) echo.MiddlewareFunc {
	userCap := max(limit, rateLimiter.Limits().MaxTierRequests())
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if isInternalRequest(c) {
				return next(c)
			}

			username, ok := c.Get("username").(string)
			if !ok || username == "" {
				return next(c)
			}

			ctx := c.Request().Context()
			result, err := rateLimiter.CheckUserLimit(ctx, username, userCap, ratelimit.DefaultWindowSeconds)
			if err != nil {
				return next(c)
			}
			if !result.Allowed {
				setRateLimitHeaders(c, result)
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":   "user_rate_limit_exceeded",
					"message": "You have exceeded your request quota. Please wait before trying again.",
					"details": map[string]interface{}{
						"username":            username,
						"limit":               result.Limit,
						"window":              "60 seconds",
						"current_count":       result.CurrentCount,
						"retry_after_seconds": result.RetryAfterSeconds,
					},
				})
			}

			profile := ratelimit.InspectRequest(c.Request().Method, c.Request().ContentLength)
			tierResult, err := rateLimiter.CheckTieredLimit(ctx, username, profile.Tier)
			if err != nil {
				setRateLimitHeaders(c, result)
				return next(c)
			}
			setRateLimitHeaders(c, tierResult)
			if !tierResult.Allowed {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":   "tier_rate_limit_exceeded",
					"message": rateLimiter.Limits().Tier(profile.Tier).Describe(),
					"details": map[string]interface{}{
						"username":            username,
						"tier":                profile.Tier.String(),
						"limit":               tierResult.Limit,
						"current_count":       tierResult.CurrentCount,
						"retry_after_seconds": tierResult.RetryAfterSeconds,
					},
				})
			}

			return next(c)
		}
	}
}
