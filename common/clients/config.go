package clients

import (
	"os"
	"strings"
	"time"
)

// DefaultServerURL is where the content API listens by default
const DefaultServerURL = "http://localhost:8080"

// DefaultTimeout bounds a single API call, uploads included
const DefaultTimeout = 2 * time.Minute

// ClientConfig is how a CLI or script reaches the content API
type ClientConfig struct {
	ServerURL string
	UserID    string
	Timeout   time.Duration
}

// ClientConfigFromEnv reads CONTENT_API_URL, CONTENT_API_USER and
// CONTENT_API_TIMEOUT
func ClientConfigFromEnv() ClientConfig {
	return loadClientConfig(os.Getenv)
}

func loadClientConfig(getenv func(string) string) ClientConfig {
	cfg := ClientConfig{
		ServerURL: DefaultServerURL,
		UserID:    strings.TrimSpace(getenv("CONTENT_API_USER")),
		Timeout:   DefaultTimeout,
	}
	if v := strings.TrimSpace(getenv("CONTENT_API_URL")); v != "" {
		cfg.ServerURL = v
	}
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	if v := getenv("CONTENT_API_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}
	return cfg
}
