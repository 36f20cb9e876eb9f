package bootstrap

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lyzr/cookbook/common/cache"
	"github.com/lyzr/cookbook/common/config"
	"github.com/lyzr/cookbook/common/db"
	"github.com/lyzr/cookbook/common/logger"
	"github.com/lyzr/cookbook/common/metrics"
	"github.com/lyzr/cookbook/common/redis"
	"github.com/lyzr/cookbook/common/telemetry"
)

// Setup initializes all service components
// This is the main entry point for all services
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	options := &options{}
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{
		cleanups: make([]func() error, 0),
	}

	// 1. Load configuration
	var err error
	if options.config != nil {
		components.Config = options.config
	} else {
		components.Config, err = config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	// 2. Initialize logger
	if options.logger != nil {
		components.Logger = options.logger
	} else {
		components.Logger = logger.New(
			components.Config.Service.LogLevel,
			components.Config.Service.LogFormat,
		)
	}

	components.Logger.Info("initializing service",
		"service", serviceName,
		"environment", components.Config.Service.Environment,
	)

	// 3. Initialize database (if not skipped)
	if !options.skipDB {
		components.Logger.Info("connecting to database")
		components.DB, err = db.New(ctx, components.Config, components.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		components.addCleanup(func() error {
			components.DB.Close()
			return nil
		})

		for i, hook := range options.dbInitHooks {
			components.Logger.Info("running database init hook", "hook", i)
			if err := hook(ctx, components.DB); err != nil {
				components.Shutdown(ctx)
				return nil, fmt.Errorf("database init hook failed: %w", err)
			}
		}
	}

	// 4. Initialize Redis (if not skipped). Rate limiting and the shared
	// cache degrade gracefully without it.
	if !options.skipRedis {
		components.Redis, err = redis.Connect(ctx, redis.Options{
			Addr:     components.Config.RedisAddr(),
			Password: components.Config.Redis.Password,
			DB:       components.Config.Redis.DB,
		}, components.Logger)
		if err != nil {
			components.Logger.Warn("redis unavailable, continuing without it", "error", err)
			components.Redis = nil
		} else {
			components.addCleanup(func() error {
				components.Logger.Info("closing redis connection")
				return components.Redis.Close()
			})
		}
	}

	// 5. Initialize cache (if not skipped)
	if !options.skipCache && components.Config.Cache.Enabled {
		backend := components.Config.Cache.Backend
		if backend == "redis" && components.Redis == nil {
			components.Logger.Warn("redis cache requested but redis is unavailable, using memory cache")
			backend = "memory"
		}

		components.Logger.Info("initializing cache", "backend", backend)
		switch backend {
		case "redis":
			components.Cache = cache.NewRedisCache(components.Redis, "cookbook:cache:")
		default:
			components.Cache = cache.NewMemoryCache(components.Logger)
		}

		components.addCleanup(func() error {
			return components.Cache.Close()
		})
	}

	// 6. Initialize telemetry and metrics (if not skipped)
	var registerer prometheus.Registerer = prometheus.NewRegistry()
	if !options.skipTelemetry {
		tcfg := components.Config.Telemetry
		components.Telemetry = telemetry.New(tcfg.PprofPort, tcfg.MetricsPort, tcfg.EnablePprof, tcfg.EnableMetrics, components.Logger)
		registerer = components.Telemetry.Registry()

		if err := components.Telemetry.Start(ctx); err != nil {
			// Don't fail startup if telemetry fails
			components.Logger.Warn("failed to start telemetry", "error", err)
		}
		components.addCleanup(func() error {
			return components.Telemetry.Shutdown(context.Background())
		})
	}

	if options.registerer != nil {
		registerer = options.registerer
	}
	components.Metrics, err = metrics.New(metrics.DefaultNamespace, registerer)
	if err != nil {
		components.Shutdown(ctx)
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	components.Logger.Info("service initialization complete",
		"service", serviceName,
		"db", components.DB != nil,
		"redis", components.Redis != nil,
		"cache", components.Cache != nil,
		"telemetry", components.Telemetry != nil,
	)

	return components, nil
}

// MustSetup is like Setup but panics on error
// Useful for services that can't recover from initialization failure
func MustSetup(ctx context.Context, serviceName string, opts ...Option) *Components {
	components, err := Setup(ctx, serviceName, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to setup service %s: %v", serviceName, err))
	}
	return components
}
