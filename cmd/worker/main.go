// Command worker runs the Worker Pool (C4) and Recovery Loop (C6): the
// process that actually claims tasks from the Queue Store and drives
// them to completion via the registered Handlers. It exposes no task
// API of its own — enqueue and control operations live in
// cmd/producer — only /healthz, /readyz, and /metrics.
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
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.taskorchestrator.dev/internal/common/health"
	"go.taskorchestrator.dev/internal/common/lifecycle"
	"go.taskorchestrator.dev/internal/graphengine/graphenginehttp"
	"go.taskorchestrator.dev/internal/handlers"
	"go.taskorchestrator.dev/internal/journal"
	"go.taskorchestrator.dev/internal/producer"
	"go.taskorchestrator.dev/internal/queuestore"
	"go.taskorchestrator.dev/internal/recovery"
	"go.taskorchestrator.dev/internal/registry"
	"go.taskorchestrator.dev/internal/worker"
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

	logger.Info("starting worker", "version", version, "build_time", buildTime)

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

	graphClient := graphenginehttp.New(graphenginehttp.DefaultConfig(app.Config.GraphEngine.BaseURL))

	reg := registry.New()
	reg.Register(&handlers.AddEpisodeHandler{Graph: graphClient})
	reg.Register(&handlers.RebuildCommunitiesHandler{Graph: graphClient, Logger: logger})
	reg.Register(&handlers.DeduplicateEntitiesHandler{Graph: graphClient, Similarity: handlers.CosineSimilarity, Logger: logger})
	reg.Register(&handlers.IncrementalRefreshHandler{Graph: graphClient, Producer: prod, Logger: logger})

	orchCfg := app.Config.Orchestrator
	poolCfg := worker.Config{
		WorkerCount:            orchCfg.WorkerCount,
		ActiveGroupsSampleSize: orchCfg.ActiveGroupsSampleSize,
		GroupLockTTL:           time.Duration(orchCfg.GroupLockTTLSeconds) * time.Second,
		DefaultHandlerTimeout:  time.Duration(orchCfg.DefaultHandlerTimeoutSeconds) * time.Second,
	}
	processID := uuid.NewString()
	pool := worker.NewPool(journalRepo, queueStore, reg, processID, poolCfg, logger)

	recoveryLoop := recovery.New(
		journalRepo,
		queueStore,
		reg,
		time.Duration(orchCfg.RecoveryPeriodSeconds)*time.Second,
		time.Duration(orchCfg.DefaultHandlerTimeoutSeconds)*time.Second,
		logger,
	)

	pool.Start(ctx)
	recoveryLoop.Start(ctx)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthChecker.HandleLive)
	r.Get("/readyz", healthChecker.HandleReady)
	r.Handle("/metrics", promhttp.Handler())

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
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server forced to shutdown", "error", err)
	}

	pool.Wait()
	recoveryLoop.Wait()

	logger.Info("worker stopped")
}
