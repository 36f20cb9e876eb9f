package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service configuration
type Config struct {
	Service   ServiceConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Upload    UploadConfig
	Links     LinksConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
	BodyLimit   string
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host           string
	Port           int
	Database       string
	User           string
	Password       string
	MaxConns       int
	MinConns       int
	MaxIdleTime    time.Duration
	MaxLifetime    time.Duration
	ConnectRetries int
	RetryBackoff   time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig holds cache settings
type CacheConfig struct {
	Enabled    bool
	Backend    string // "memory" or "redis"
	DefaultTTL time.Duration
}

// UploadConfig holds the upload pipeline settings
type UploadConfig struct {
	Destinations     []string
	PublicPrefix     string
	PublicBaseURL    string
	MaxBytes         int64
	AllowedTypes     []string
	OptimizeMaxWidth int
	OptimizeQuality  int
	OptimizeAVIF     bool
	AVIFQuality      int
}

// LinksConfig holds link engine settings
type LinksConfig struct {
	PathPrefix   string
	SuggestLimit int
}

// RateLimitConfig holds upload rate limits, in requests per minute
type RateLimitConfig struct {
	Enabled bool
	Global  int
	User    int
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof   bool
	PprofPort     int
	EnableMetrics bool
	MetricsPort   int
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
			BodyLimit:   getEnv("BODY_LIMIT", "25M"),
		},
		Database: DatabaseConfig{
			Host:           getEnv("POSTGRES_HOST", "localhost"),
			Port:           getEnvInt("POSTGRES_PORT", 5432),
			Database:       getEnv("POSTGRES_DB", "cookbook"),
			User:           getEnv("POSTGRES_USER", "cookbook"),
			Password:       getEnv("POSTGRES_PASSWORD", "cookbook"),
			MaxConns:       getEnvInt("POSTGRES_MAX_CONNS", 20),
			MinConns:       getEnvInt("POSTGRES_MIN_CONNS", 2),
			MaxIdleTime:    getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime:    getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
			ConnectRetries: getEnvInt("POSTGRES_CONNECT_RETRIES", 3),
			RetryBackoff:   getEnvDuration("POSTGRES_RETRY_BACKOFF", time.Second),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			Enabled:    getEnvBool("CACHE_ENABLED", true),
			Backend:    getEnv("CACHE_BACKEND", "memory"),
			DefaultTTL: getEnvDuration("CACHE_DEFAULT_TTL", 5*time.Minute),
		},
		Upload: UploadConfig{
			Destinations: getEnvSlice("UPLOAD_DESTINATIONS", []string{
				"public/images/uploads",
				"../site/public/images/uploads",
				"data/mirror/uploads",
			}),
			PublicPrefix:     getEnv("UPLOAD_PUBLIC_PREFIX", "/images/uploads"),
			PublicBaseURL:    strings.TrimRight(getEnv("UPLOAD_PUBLIC_BASE_URL", ""), "/"),
			MaxBytes:         getEnvInt64("UPLOAD_MAX_BYTES", 10<<20),
			AllowedTypes:     getEnvSlice("UPLOAD_ALLOWED_TYPES", []string{"image/jpeg", "image/jpg", "image/png", "image/webp", "image/avif"}),
			OptimizeMaxWidth: getEnvInt("UPLOAD_OPTIMIZE_MAX_WIDTH", 1600),
			OptimizeQuality:  getEnvInt("UPLOAD_OPTIMIZE_QUALITY", 82),
			OptimizeAVIF:     getEnvBool("UPLOAD_OPTIMIZE_AVIF", true),
			AVIFQuality:      getEnvInt("UPLOAD_AVIF_QUALITY", 60),
		},
		Links: LinksConfig{
			PathPrefix:   getEnv("LINKS_PATH_PREFIX", "/recipes/"),
			SuggestLimit: getEnvInt("LINKS_SUGGEST_LIMIT", 10),
		},
		RateLimit: RateLimitConfig{
			Enabled: getEnvBool("RATE_LIMIT_ENABLED", true),
			Global:  getEnvInt("RATE_LIMIT_GLOBAL", 300),
			User:    getEnvInt("RATE_LIMIT_USER", 30),
		},
		Telemetry: TelemetryConfig{
			EnablePprof:   getEnvBool("ENABLE_PPROF", false),
			PprofPort:     getEnvInt("PPROF_PORT", 6060),
			EnableMetrics: getEnvBool("ENABLE_METRICS", true),
			MetricsPort:   getEnvInt("METRICS_PORT", 9090),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns must be >= min_conns")
	}

	if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		return fmt.Errorf("unknown cache backend: %s", c.Cache.Backend)
	}

	if len(c.Upload.Destinations) == 0 {
		return fmt.Errorf("at least one upload destination is required")
	}

	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("invalid upload max bytes: %d", c.Upload.MaxBytes)
	}

	if c.Upload.OptimizeQuality < 1 || c.Upload.OptimizeQuality > 100 {
		return fmt.Errorf("invalid optimize quality: %d", c.Upload.OptimizeQuality)
	}

	if c.Upload.AVIFQuality < 1 || c.Upload.AVIFQuality > 100 {
		return fmt.Errorf("invalid avif quality: %d", c.Upload.AVIFQuality)
	}

	if !strings.HasPrefix(c.Upload.PublicPrefix, "/") {
		return fmt.Errorf("upload public prefix must start with /: %q", c.Upload.PublicPrefix)
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// RedisAddr returns host:port for the Redis client
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvSlice splits a comma-separated value, dropping empty items
func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
