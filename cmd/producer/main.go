// Command producer runs the Producer API (C3): the HTTP surface for
// enqueueing and controlling tasks against the Task Journal and Queue
// Store. It owns no worker goroutines — the Worker Pool and Recovery
// Loop live in cmd/worker — so it can scale independently of task
// throughput.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.taskorchestrator.dev/internal/common/health"
	"go.taskorchestrator.dev/internal/common/lifecycle"
	"go.taskorchestrator.dev/internal/control"
	"go.taskorchestrator.dev/internal/httpapi"
	"go.taskorchestrator.dev/internal/journal"
	"go.taskorchestrator.dev/internal/producer"
	"go.taskorchestrator.dev/internal/queuestore"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("ORCHESTRATOR_DEV") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("starting producer", "version", version, "build_time", buildTime)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, cleanup, err := lifecycle.Initialize(ctx, lifecycle.AppOptions{NeedsJournal: true, NeedsQueue: true})
	if err != nil {
		logger.Error("failed to initialize app", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	healthChecker := health.NewChecker()
	healthChecker.AddReadinessCheck(health.PostgresCheck(func() error {
		return app.DB.PingContext(ctx)
	}))
	healthChecker.AddReadinessCheck(health.RedisCheck(func() error {
		return app.Redis.Ping(ctx).Err()
	}))

	journalRepo := journal.NewInstrumented(journal.NewPostgresRepository(app.DB))
	queueStore := queuestore.NewRedisStore(app.Redis)

	prod := producer.New(journalRepo, queueStore, logger)
	ctrl := control.New(journalRepo, queueStore, logger)
	apiHandler := httpapi.New(prod, ctrl, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   app.Config.HTTP.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", healthChecker.HandleLive)
	r.Get("/readyz", healthChecker.HandleReady)
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/api/tasks", apiHandler.Routes())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", app.Config.HTTP.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "port", app.Config.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server forced to shutdown", "error", err)
	}

	logger.Info("producer stopped")
}
