package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sumire/authsession/internal/authstate"
	"github.com/sumire/authsession/internal/config"
	"github.com/sumire/authsession/internal/domain"
	"github.com/sumire/authsession/internal/gotrue"
	"github.com/sumire/authsession/internal/handler"
	"github.com/sumire/authsession/internal/metrics"
	"github.com/sumire/authsession/internal/repository"
	"github.com/sumire/authsession/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, closeStorage, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStorage()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	client := gotrue.NewClient(gotrue.Config{
		URL:        cfg.AuthURL,
		APIKey:     cfg.AuthAPIKey,
		HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
		Storage:    storage,
	})

	store := authstate.NewStore()
	store.Subscribe(collector.ObserveState)
	store.Subscribe(logState)

	manager := service.NewSubscriptionManager(client, store, collector)
	manager.Start(ctx)
	defer manager.Stop()

	authSvc := service.NewAuthService(client, store, collector, service.AuthConfig{
		RedirectURL: cfg.RedirectURL(),
	})

	e := handler.NewRouter(handler.RouterConfig{
		Auth:          authSvc,
		Gatherer:      reg,
		AllowedOrigin: origin(cfg.SiteURL),
		RedirectPath:  cfg.AuthRedirectPath,
		AuthRateLimit: cfg.AuthRateLimit,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// openStorage returns postgres-backed session storage when DATABASE_URL is
// set and in-memory storage otherwise.
func openStorage(ctx context.Context, cfg config.Config) (gotrue.SessionStorage, func(), error) {
	if cfg.DatabaseURL == "" {
		slog.Info("session storage: memory")
		return gotrue.NewMemoryStorage(), func() {}, nil
	}

	db, err := sqlx.ConnectContext(ctx, "pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	repo := repository.NewSessionRepository(db, storageKey(cfg.AuthURL))
	if err := repo.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}

	slog.Info("session storage: postgres")
	return repo, func() { db.Close() }, nil
}

// storageKey mirrors the per-project key naming used by browser clients.
func storageKey(authURL string) string {
	u, err := url.Parse(authURL)
	if err != nil || u.Hostname() == "" {
		return "auth-token"
	}
	return "sb-" + u.Hostname() + "-auth-token"
}

func origin(siteURL string) string {
	u, err := url.Parse(siteURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func logState(st domain.AuthState) {
	var userID string
	if st.User != nil {
		userID = st.User.ID
	}
	slog.Info("auth: current state",
		"authenticated", st.Authenticated(),
		"loading", st.Loading,
		"user_id", userID,
	)
}
