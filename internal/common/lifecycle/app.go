package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	_ "github.com/jackc/pgx/v5/stdlib"

	"go.taskorchestrator.dev/internal/config"
)

// App holds initialized infrastructure that is guaranteed to be connected.
// If you have an *App, you know the Journal's Postgres and the Queue
// Store's Redis are connected and ready.
//
// This is NOT a god object - it just holds the "dangerous" infrastructure
// that requires connection/retry logic. Application logic should NOT go here.
type App struct {
	Config *config.Config

	// Task Journal
	DB *sqlx.DB

	// Queue Store
	Redis *redis.Client

	// Internal cleanup - call AddCleanup to register cleanup functions
	cleanupFuncs []func() error
}

// AppOptions configures which infrastructure to initialize.
type AppOptions struct {
	// NeedsJournal indicates the Postgres Journal connection is required
	NeedsJournal bool

	// NeedsQueue indicates the Redis Queue Store connection is required
	NeedsQueue bool
}

// Initialize creates an App with connected infrastructure.
// Returns an error if any required connection fails.
//
// Usage:
//
//	app, cleanup, err := lifecycle.Initialize(ctx, lifecycle.AppOptions{
//	    NeedsJournal: true,
//	    NeedsQueue:   true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cleanup()
func Initialize(ctx context.Context, opts AppOptions) (*App, func(), error) {
	app := &App{}

	cfg, err := config.LoadWithFile()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg

	if opts.NeedsJournal {
		if err := app.initJournal(ctx); err != nil {
			app.Cleanup()
			return nil, nil, err
		}
	}

	if opts.NeedsQueue {
		if err := app.initQueue(ctx); err != nil {
			app.Cleanup()
			return nil, nil, err
		}
	}

	cleanup := func() {
		app.Cleanup()
	}

	return app, cleanup, nil
}

// AddCleanup registers a cleanup function to be called on shutdown.
// Functions are called in reverse order of registration.
func (app *App) AddCleanup(fn func() error) {
	app.cleanupFuncs = append(app.cleanupFuncs, fn)
}

// initJournal connects to the Journal's Postgres database with a ping
// check. A failed connect is returned at once; there is no retry.
func (app *App) initJournal(ctx context.Context) error {
	cfg := app.Config

	slog.Info("Connecting to journal database")

	db, err := sqlx.ConnectContext(ctx, "pgx", cfg.Journal.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to journal database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping journal database: %w", err)
	}

	app.DB = db
	app.AddCleanup(func() error {
		slog.Info("Closing journal database connection")
		return db.Close()
	})

	slog.Info("Connected to journal database")
	return nil
}

// initQueue connects to the Queue Store's Redis instance.
func (app *App) initQueue(ctx context.Context) error {
	cfg := app.Config

	slog.Info("Connecting to queue store")

	opts, err := redis.ParseURL(cfg.Queue.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse queue redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("failed to ping queue store: %w", err)
	}

	app.Redis = client
	app.AddCleanup(func() error {
		slog.Info("Closing queue store connection")
		return client.Close()
	})

	slog.Info("Connected to queue store")
	return nil
}

// Cleanup runs all cleanup functions in reverse order.
func (app *App) Cleanup() {
	for i := len(app.cleanupFuncs) - 1; i >= 0; i-- {
		if err := app.cleanupFuncs[i](); err != nil {
			slog.Error("Cleanup error", "error", err)
		}
	}
}
