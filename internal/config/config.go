package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Host defaults to loopback: the server holds a single process-wide
	// session and is meant to be reached only by its own user.
	Host string
	Port int

	AuthURL    string
	AuthAPIKey string

	SiteURL          string
	AuthRedirectPath string

	DatabaseURL string

	HTTPTimeout   time.Duration
	AuthRateLimit float64

	LogLevel slog.Level
}

// Addr is the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// RedirectURL is the target for email confirmation links and OAuth sign-ins.
func (c Config) RedirectURL() string {
	return strings.TrimRight(c.SiteURL, "/") + c.AuthRedirectPath
}

// Load reads configuration from environment variables and validates required fields.
func Load() (Config, error) {
	port, err := getEnvInt("PORT", 8080)
	if err != nil {
		return Config{}, fmt.Errorf("parse PORT: %w", err)
	}

	timeout, err := getEnvDuration("HTTP_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("parse HTTP_TIMEOUT: %w", err)
	}

	rateLimit, err := getEnvFloat("AUTH_RATE_LIMIT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse AUTH_RATE_LIMIT: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return Config{}, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}

	cfg := Config{
		Host:             getEnv("HOST", "127.0.0.1"),
		Port:             port,
		AuthURL:          getEnv("AUTH_URL", ""),
		AuthAPIKey:       getEnv("AUTH_API_KEY", ""),
		SiteURL:          getEnv("SITE_URL", "http://localhost:5173"),
		AuthRedirectPath: getEnv("AUTH_REDIRECT_PATH", "/dashboard"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		HTTPTimeout:      timeout,
		AuthRateLimit:    rateLimit,
		LogLevel:         level,
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.AuthURL == "" {
		return fmt.Errorf("AUTH_URL is required")
	}
	if _, err := url.ParseRequestURI(c.AuthURL); err != nil {
		return fmt.Errorf("AUTH_URL is invalid: %w", err)
	}
	if c.AuthAPIKey == "" {
		return fmt.Errorf("AUTH_API_KEY is required")
	}
	if !strings.HasPrefix(c.AuthRedirectPath, "/") {
		return fmt.Errorf("AUTH_REDIRECT_PATH must start with /")
	}
	if c.AuthRateLimit <= 0 {
		return fmt.Errorf("AUTH_RATE_LIMIT must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(v)
}
