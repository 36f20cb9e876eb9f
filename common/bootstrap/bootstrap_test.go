package bootstrap

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/cookbook/common/cache"
	"github.com/lyzr/cookbook/common/config"
	"github.com/lyzr/cookbook/common/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("content-api-test")
	require.NoError(t, err)
	return cfg
}

func TestSetup_MinimalComponents(t *testing.T) {
	ctx := context.Background()
	c, err := Setup(ctx, "content-api-test",
		WithCustomConfig(testConfig(t)),
		WithCustomLogger(logger.Discard()),
		WithoutDB(),
		WithoutRedis(),
		WithoutTelemetry(),
	)
	require.NoError(t, err)
	defer c.Shutdown(ctx)

	assert.Nil(t, c.DB)
	assert.Nil(t, c.Redis)
	assert.Nil(t, c.Telemetry)
	assert.NotNil(t, c.Metrics)
	assert.IsType(t, &cache.MemoryCache{}, c.Cache)
	assert.NoError(t, c.Health(ctx))
}

func TestSetup_RedisCacheBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	host, port, err := splitHostPort(mr.Addr())
	require.NoError(t, err)
	cfg.Redis.Host = host
	cfg.Redis.Port = port
	cfg.Cache.Backend = "redis"

	ctx := context.Background()
	c, err := Setup(ctx, "content-api-test",
		WithCustomConfig(cfg),
		WithCustomLogger(logger.Discard()),
		WithoutDB(),
		WithoutTelemetry(),
	)
	require.NoError(t, err)
	defer c.Shutdown(ctx)

	require.NotNil(t, c.Redis)
	assert.IsType(t, &cache.RedisCache{}, c.Cache)
	assert.NoError(t, c.Health(ctx))
}

func TestSetup_RedisUnavailableFallsBackToMemory(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	host, port, err := splitHostPort(mr.Addr())
	require.NoError(t, err)
	mr.Close()
	cfg.Redis.Host = host
	cfg.Redis.Port = port
	cfg.Cache.Backend = "redis"

	ctx := context.Background()
	c, err := Setup(ctx, "content-api-test",
		WithCustomConfig(cfg),
		WithCustomLogger(logger.Discard()),
		WithoutDB(),
		WithoutTelemetry(),
	)
	require.NoError(t, err)
	defer c.Shutdown(ctx)

	assert.Nil(t, c.Redis)
	assert.IsType(t, &cache.MemoryCache{}, c.Cache)
}

func TestShutdown_RunsCleanupInReverse(t *testing.T) {
	c := &Components{Logger: logger.Discard()}
	var order []int
	c.addCleanup(func() error { order = append(order, 1); return nil })
	c.addCleanup(func() error { order = append(order, 2); return nil })

	require.NoError(t, c.Shutdown(context.Background()))
	assert.Equal(t, []int{2, 1}, order)

	require.NoError(t, c.Shutdown(context.Background()))
	assert.Equal(t, []int{2, 1}, order)
}

func TestShutdown_JoinsErrors(t *testing.T) {
	c := &Components{Logger: logger.Discard()}
	c.addCleanup(func() error { return errors.New("redis close") })
	c.addCleanup(func() error { return errors.New("pool close") })

	err := c.Shutdown(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "redis close")
	assert.ErrorContains(t, err, "pool close")
}

func TestSetup_CustomRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	ctx := context.Background()
	c, err := Setup(ctx, "content-api-test",
		WithCustomConfig(testConfig(t)),
		WithCustomLogger(logger.Discard()),
		WithRegisterer(reg),
		WithoutDB(),
		WithoutRedis(),
		WithoutTelemetry(),
	)
	require.NoError(t, err)
	defer c.Shutdown(ctx)

	c.Metrics.RecordLinkOperation("insert", 2)
	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func splitHostPort(addr string) (string, int, error) {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			port, err := strconv.Atoi(addr[i+1:])
			return addr[:i], port, err
		}
	}
	return addr, 0, strconv.ErrSyntax
}
