package ops

import (
	"fmt"
	"os"
	"strings"
)

const (
	defaultAddr   = ":3000"
	defaultScheme = "https"
)

// Config is the resolved gateway configuration, read from the
// environment once at startup.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string
	// RedisURL locates the order store.
	RedisURL string
	// APIHost is the downstream base host; tenants resolve as subdomains.
	APIHost string
	// APIScheme is the downstream URL scheme.
	APIScheme string
	// CORSOrigin is the allowed browser origin. Empty allows any origin.
	CORSOrigin string
	// PostgresDSN enables the archive sink when set.
	PostgresDSN string
	// PyroscopeURL enables continuous profiling when set.
	PyroscopeURL string
}

// Load reads the gateway configuration from environment variables and
// applies defaults.
func Load() (Config, error) {
	cfg := Config{
		Addr:         getenv("GATEWAY_ADDR", defaultAddr),
		RedisURL:     os.Getenv("REDIS_URL"),
		APIHost:      os.Getenv("API_HOST"),
		APIScheme:    getenv("API_SCHEME", defaultScheme),
		CORSOrigin:   os.Getenv("CORS_ORIGIN"),
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		PyroscopeURL: os.Getenv("PYROSCOPE_URL"),
	}
	return cfg, cfg.validate()
}

func (cfg Config) validate() error {
	if cfg.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is empty")
	}
	if cfg.APIHost == "" {
		return fmt.Errorf("API_HOST is empty")
	}
	if cfg.APIScheme != "http" && cfg.APIScheme != "https" {
		return fmt.Errorf("unsupported API_SCHEME: %s", cfg.APIScheme)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
