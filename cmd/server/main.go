// Package main is the entrypoint for the crashdesk server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kiranshivaraju/crashdesk/internal/api"
	"github.com/kiranshivaraju/crashdesk/internal/api/handler"
	mw "github.com/kiranshivaraju/crashdesk/internal/api/middleware"
	"github.com/kiranshivaraju/crashdesk/internal/api/response"
	"github.com/kiranshivaraju/crashdesk/internal/cache"
	"github.com/kiranshivaraju/crashdesk/internal/config"
	"github.com/kiranshivaraju/crashdesk/internal/reports"
	"github.com/kiranshivaraju/crashdesk/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "base_url", cfg.Server.BaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create store and report service
	pgStore := store.NewPostgresStore(pool)
	svc := reports.NewService(pgStore, cfg.Intake.Secret, cfg.Intake.MaxProblemBytes)

	// 6. Build router with dependencies
	feedCache := cache.NewFeedCache(redisCache)
	auth := mw.NewAuth(redisCache, cfg.Console.Username, cfg.Console.PasswordHash, cfg.Console.SessionTTL)
	rateLimit := mw.NewRateLimit(redisCache, cfg.Intake.RatePerMin)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler:  healthHandler(pgStore, redisCache),
		MetricsHandler: promhttp.Handler(),

		IntakeHandler: handler.NewIntakeHandler(svc, cfg.Intake.MaxProblemBytes),
		FeedHandler: handler.NewFeedHandler(svc, redisCache, handler.FeedOptions{
			BaseURL:  cfg.Server.BaseURL,
			Size:     cfg.Feed.Size,
			CacheTTL: cfg.Feed.CacheTTL,
		}),

		LoginHandler:      handler.NewLoginHandler(auth),
		LogoutHandler:     handler.NewLogoutHandler(auth),
		ListHandler:       handler.NewListHandler(svc),
		ResolveAllHandler: handler.NewResolveAllHandler(svc, feedCache),
		DetailHandler:     handler.NewDetailHandler(svc),
		ToggleHandler:     handler.NewToggleHandler(svc, feedCache),
	}

	router := api.NewRouter(deps)

	// 7. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// pinger is the slice of store.Store and cache.Cache the health check needs.
type pinger interface {
	Ping(ctx context.Context) error
}

// healthHandler checks database and cache connectivity.
func healthHandler(db, c pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := db.Ping(r.Context()); err != nil {
			slog.Warn("health check: database unreachable", "error", err)
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			slog.Warn("health check: cache unreachable", "error", err)
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
