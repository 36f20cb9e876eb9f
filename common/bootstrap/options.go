package bootstrap

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lyzr/cookbook/common/config"
	"github.com/lyzr/cookbook/common/db"
	"github.com/lyzr/cookbook/common/logger"
)

// Option configures Setup
type Option func(*options)

type options struct {
	skipDB        bool
	skipRedis     bool
	skipCache     bool
	skipTelemetry bool
	logger        *logger.Logger
	config        *config.Config
	registerer    prometheus.Registerer
	dbInitHooks   []func(context.Context, *db.DB) error
}

// WithoutDB runs without the document store
func WithoutDB() Option {
	return func(o *options) { o.skipDB = true }
}

// WithoutRedis skips Redis; rate limiting is disabled and the cache stays in memory
func WithoutRedis() Option {
	return func(o *options) { o.skipRedis = true }
}

// WithoutCache leaves Components.Cache nil
func WithoutCache() Option {
	return func(o *options) { o.skipCache = true }
}

// WithoutTelemetry skips the pprof and metrics listeners
func WithoutTelemetry() Option {
	return func(o *options) { o.skipTelemetry = true }
}

// WithCustomLogger uses log instead of building one from config
func WithCustomLogger(log *logger.Logger) Option {
	return func(o *options) { o.logger = log }
}

// WithCustomConfig uses cfg instead of loading from the environment
func WithCustomConfig(cfg *config.Config) Option {
	return func(o *options) { o.config = cfg }
}

// WithRegisterer registers service metrics on r instead of the telemetry registry
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

// WithDBInitHook runs hook once the pool is connected. Hooks run in the
// order they were added and a failing hook aborts Setup.
func WithDBInitHook(hook func(context.Context, *db.DB) error) Option {
	return func(o *options) { o.dbInitHooks = append(o.dbInitHooks, hook) }
}

// WithSchemaMigration applies the documents schema after connecting
func WithSchemaMigration() Option {
	return WithDBInitHook(func(ctx context.Context, d *db.DB) error {
		return d.Migrate(ctx)
	})
}
