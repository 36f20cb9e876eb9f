package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/lyzr/cookbook/common/cache"
	"github.com/lyzr/cookbook/common/config"
	"github.com/lyzr/cookbook/common/db"
	"github.com/lyzr/cookbook/common/logger"
	"github.com/lyzr/cookbook/common/metrics"
	"github.com/lyzr/cookbook/common/redis"
	"github.com/lyzr/cookbook/common/telemetry"
)

// Components are the shared dependencies of a content service. DB, Redis,
// Cache and Telemetry are nil when skipped or unavailable.
type Components struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        *db.DB
	Redis     *redis.Client
	Cache     cache.Cache
	Metrics   *metrics.Metrics
	Telemetry *telemetry.Telemetry

	cleanups []func() error
}

// Shutdown releases components in reverse order of setup. Calling it
// again is a no-op.
func (c *Components) Shutdown(ctx context.Context) error {
	if len(c.cleanups) == 0 {
		return nil
	}
	c.Logger.Info("shutting down components", "count", len(c.cleanups))

	var errs []error
	for i := len(c.cleanups) - 1; i >= 0; i-- {
		if err := c.cleanups[i](); err != nil {
			c.Logger.Error("cleanup error", "error", err)
			errs = append(errs, err)
		}
	}
	c.cleanups = nil

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("shutdown errors: %w", err)
	}

	c.Logger.Info("shutdown complete")
	return nil
}

// Health reports the first unhealthy backing store
func (c *Components) Health(ctx context.Context) error {
	if c.DB != nil {
		if err := c.DB.Health(ctx); err != nil {
			return fmt.Errorf("database unhealthy: %w", err)
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Health(ctx); err != nil {
			return fmt.Errorf("redis unhealthy: %w", err)
		}
	}

	return nil
}

func (c *Components) addCleanup(fn func() error) {
	c.cleanups = append(c.cleanups, fn)
}
