package ratelimit

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

//go:embed rate_limit.lua
var rateLimitScript string

// Logger interface for logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// Decision is the outcome of one counter check
type Decision struct {
	Allowed           bool  // Whether the request is allowed
	CurrentCount      int64 // Current count in the window
	Limit             int64 // The limit that was checked
	RetryAfterSeconds int64 // Seconds until the limit resets (0 if allowed)
}

// RateLimiter counts upload requests in fixed windows using Redis + Lua
type RateLimiter struct {
	redis  *redis.Client
	script *redis.Script
	limits Limits
	logger Logger
}

// Option configures a RateLimiter
type Option func(*RateLimiter)

// WithLimits replaces the default tier allowances
func WithLimits(limits Limits) Option {
	return func(r *RateLimiter) {
		r.limits = limits
	}
}

// NewRateLimiter creates a rate limiter with the embedded Lua script
func NewRateLimiter(redisClient *redis.Client, logger Logger, opts ...Option) *RateLimiter {
	r := &RateLimiter{
		redis:  redisClient,
		script: redis.NewScript(rateLimitScript),
		limits: DefaultLimits(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Limits returns the allowances this limiter enforces
func (r *RateLimiter) Limits() Limits {
	return r.limits
}

// CheckGlobalLimit checks the service-wide upload counter
func (r *RateLimiter) CheckGlobalLimit(ctx context.Context, limit int64) (*Decision, error) {
	return r.checkLimit(ctx, "rate_limit:upload:global", limit, r.limits.Tier(TierStandard).WindowSeconds)
}

// CheckUserLimit checks rate limit for a specific user
func (r *RateLimiter) CheckUserLimit(ctx context.Context, username string, limit int64, windowSec int) (*Decision, error) {
	key := fmt.Sprintf("rate_limit:upload:user:%s", username)
	return r.checkLimit(ctx, key, limit, windowSec)
}

// CheckTieredLimit checks the per-user limit of a request tier
// Uses separate counters for each tier so deletes are not blocked by batch uploads
func (r *RateLimiter) CheckTieredLimit(ctx context.Context, username string, tier RequestTier) (*Decision, error) {
	limit := r.limits.Tier(tier)
	key := fmt.Sprintf("rate_limit:upload:user:%s:tier:%s", username, limit.Tier)
	return r.checkLimit(ctx, key, limit.Requests, limit.WindowSeconds)
}

// checkLimit executes the rate limit Lua script
func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int64, windowSec int) (*Decision, error) {
	result, err := r.script.Run(ctx, r.redis, []string{key}, limit, windowSec).Result()
	if err != nil {
		r.logger.Error("rate limit check failed", "key", key, "error", err)
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	// {allowed, current_count, limit, retry_after}
	values, ok := result.([]interface{})
	if !ok || len(values) != 4 {
		return nil, fmt.Errorf("unexpected script result format")
	}
	ints := make([]int64, len(values))
	for i, v := range values {
		n, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("unexpected script result element %d: %T", i, v)
		}
		ints[i] = n
	}

	decision := &Decision{
		Allowed:           ints[0] == 1,
		CurrentCount:      ints[1],
		Limit:             ints[2],
		RetryAfterSeconds: ints[3],
	}

	if !decision.Allowed {
		r.logger.Warn("rate limit exceeded",
			"key", key,
			"current", decision.CurrentCount,
			"limit", limit,
			"retry_after", decision.RetryAfterSeconds)
	} else {
		r.logger.Debug("rate limit check passed",
			"key", key,
			"current", decision.CurrentCount,
			"limit", limit)
	}

	return decision, nil
}

// GetCurrentCount returns current count without incrementing (for monitoring)
func (r *RateLimiter) GetCurrentCount(ctx context.Context, key string) (int64, error) {
	count, err := r.redis.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return count, err
}

// ResetLimit clears a rate limit counter (for testing/admin)
func (r *RateLimiter) ResetLimit(ctx context.Context, key string) error {
	return r.redis.Del(ctx, key).Err()
}
