package config

import (
	"log/slog"
	"testing"
	"time"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()
	t.Setenv("AUTH_URL", "https://project.supabase.co")
	t.Setenv("AUTH_API_KEY", "anon-key")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Addr() != "127.0.0.1:8080" {
		t.Errorf("Addr() = %q, want loopback", cfg.Addr())
	}
	if cfg.SiteURL != "http://localhost:5173" {
		t.Errorf("SiteURL = %q", cfg.SiteURL)
	}
	if cfg.RedirectURL() != "http://localhost:5173/dashboard" {
		t.Errorf("RedirectURL() = %q", cfg.RedirectURL())
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("HTTPTimeout = %v", cfg.HTTPTimeout)
	}
	if cfg.AuthRateLimit != 5 {
		t.Errorf("AuthRateLimit = %v", cfg.AuthRateLimit)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("HOST", "0.0.0.0")
	t.Setenv("PORT", "9090")
	t.Setenv("SITE_URL", "https://app.example.com/")
	t.Setenv("AUTH_REDIRECT_PATH", "/home")
	t.Setenv("HTTP_TIMEOUT", "3s")
	t.Setenv("AUTH_RATE_LIMIT", "0.5")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://localhost/auth")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Addr() != "0.0.0.0:9090" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
	if cfg.RedirectURL() != "https://app.example.com/home" {
		t.Errorf("RedirectURL() = %q", cfg.RedirectURL())
	}
	if cfg.HTTPTimeout != 3*time.Second {
		t.Errorf("HTTPTimeout = %v", cfg.HTTPTimeout)
	}
	if cfg.AuthRateLimit != 0.5 {
		t.Errorf("AuthRateLimit = %v", cfg.AuthRateLimit)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
	if cfg.DatabaseURL != "postgres://localhost/auth" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing auth url", map[string]string{"AUTH_URL": "", "AUTH_API_KEY": "k"}},
		{"invalid auth url", map[string]string{"AUTH_URL": "not a url", "AUTH_API_KEY": "k"}},
		{"missing api key", map[string]string{"AUTH_URL": "https://x.supabase.co", "AUTH_API_KEY": ""}},
		{"bad port", map[string]string{"AUTH_URL": "https://x.supabase.co", "AUTH_API_KEY": "k", "PORT": "abc"}},
		{"bad timeout", map[string]string{"AUTH_URL": "https://x.supabase.co", "AUTH_API_KEY": "k", "HTTP_TIMEOUT": "soon"}},
		{"bad redirect path", map[string]string{"AUTH_URL": "https://x.supabase.co", "AUTH_API_KEY": "k", "AUTH_REDIRECT_PATH": "dashboard"}},
		{"negative rate", map[string]string{"AUTH_URL": "https://x.supabase.co", "AUTH_API_KEY": "k", "AUTH_RATE_LIMIT": "-1"}},
		{"bad log level", map[string]string{"AUTH_URL": "https://x.supabase.co", "AUTH_API_KEY": "k", "LOG_LEVEL": "loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
