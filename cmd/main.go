// jobby-recommend-service
//
// Aggregates job postings from the external search provider, scores them
// against user-defined pattern rules, and maintains a ranked recommended
// set. Pulls are triggered over HTTP or by the settings-driven cron
// schedule; pollers follow progress via /admin/recommended-status.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"jobby/recommend-service/internal/config"
	"jobby/recommend-service/internal/db"
	"jobby/recommend-service/internal/events"
	"jobby/recommend-service/internal/httpapi"
	"jobby/recommend-service/internal/runner"
	"jobby/recommend-service/internal/scheduler"
	"jobby/recommend-service/internal/search"
	"jobby/recommend-service/internal/store"
)

const version = "1.0.0"

func main() {
	// ── Config & logging ─────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      parseLevel(cfg.LogLevel),
		TimeFormat: time.TimeOnly,
	})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("postgres", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := db.EnsureSchema(ctx, pool); err != nil {
		slog.Error("schema", "err", err)
		os.Exit(1)
	}
	slog.Info("postgres connected")

	// ── Redis ────────────────────────────────────────────────────────────────
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("redis", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()
	slog.Info("redis connected")

	// ── Wiring ───────────────────────────────────────────────────────────────
	stores := httpapi.Stores{
		Jobs:        store.NewJobs(pool),
		Runs:        store.NewRuns(pool),
		Matches:     store.NewMatches(pool),
		Queries:     store.NewQueries(pool),
		Patterns:    store.NewPatterns(pool),
		Settings:    store.NewSettings(pool),
		Maintenance: store.NewMaintenance(pool),
	}

	coord := runner.New(runner.Deps{
		Jobs:     stores.Jobs,
		Runs:     stores.Runs,
		Matches:  stores.Matches,
		Queries:  stores.Queries,
		Patterns: stores.Patterns,
		Settings: stores.Settings,
		Searcher: search.NewClient(cfg.JSearchAPIKey, cfg.ProviderTimeout),
		Lock:     events.NewRunLock(rdb, runner.StalenessWindow),
		Events:   events.NewPublisher(rdb),
	})

	sched := scheduler.New(coord, stores.Settings)
	if err := sched.Start(ctx); err != nil {
		slog.Error("scheduler", "err", err)
		os.Exit(1)
	}
	defer sched.Stop()

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	httpapi.NewHandler(stores, coord, sched).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		slog.Info("listening", "version", version, "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("shutdown", "err", err)
	}
	slog.Info("stopped")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "recommend-service",
		"version": version,
	})
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
