package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Where html_path references are fetched from. Empty means this server's
	// own bundled documents.
	BaseURL string

	// Catalog override; empty uses the embedded catalog.
	CatalogPath string

	// Offline asset cache
	CachePath       string
	CacheName       string
	Precache        bool
	PrecacheRetries int

	// Sessions
	SessionTTL      time.Duration
	CleanupInterval time.Duration

	FetchTimeout    time.Duration
	DefaultFontSize int

	// Request limits
	MaxBodyBytes int64

	CORSAllowAll bool
	LogLevel     string
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		BaseURL:     os.Getenv("BASE_URL"),
		CatalogPath: os.Getenv("CATALOG_PATH"),

		CachePath: envOr("CACHE_PATH", "data/assets.db"),
		CacheName: envOr("CACHE_NAME", "biblioteca-juridica-cache-v1"),
		Precache:  envBool("PRECACHE", true),

		PrecacheRetries: envInt("PRECACHE_RETRIES", 2),

		SessionTTL:      envDuration("SESSION_TTL", 1*time.Hour),
		CleanupInterval: envDuration("SESSION_CLEANUP_INTERVAL", 5*time.Minute),

		FetchTimeout:    envDuration("FETCH_TIMEOUT", 30*time.Second),
		DefaultFontSize: envInt("DEFAULT_FONT_SIZE", 16),

		MaxBodyBytes: envInt64("MAX_BODY_BYTES", 64<<10),

		CORSAllowAll: envBool("CORS_ALLOW_ALL", true),
		LogLevel:     envOr("LOG_LEVEL", "info"),
	}

	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 1 * time.Hour
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.PrecacheRetries < 0 {
		cfg.PrecacheRetries = 0
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:" + cfg.Port
	}

	return cfg
}

func (c Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric: %q", c.Port)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BASE_URL must be an absolute URL: %q", c.BaseURL)
	}
	if c.CacheName == "" {
		return fmt.Errorf("CACHE_NAME is required")
	}
	if c.DefaultFontSize < 10 || c.DefaultFontSize > 32 {
		return fmt.Errorf("DEFAULT_FONT_SIZE must be between 10 and 32, got %d", c.DefaultFontSize)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error: %q", c.LogLevel)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
