package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the orchestrator.
type Config struct {
	// HTTP server configuration
	HTTP HTTPConfig

	// Journal (Postgres) configuration
	Journal JournalConfig

	// Queue Store (Redis) configuration
	Queue QueueConfig

	// Orchestrator tuning knobs, per SPEC_FULL.md §6
	Orchestrator OrchestratorConfig

	// Graph Engine collaborator configuration
	GraphEngine GraphEngineConfig

	// Development mode
	DevMode bool
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port        int
	CORSOrigins []string
}

// JournalConfig holds the Task Journal's Postgres connection configuration
type JournalConfig struct {
	DSN string
}

// QueueConfig holds the Queue Store's Redis connection configuration
type QueueConfig struct {
	RedisURL string
}

// OrchestratorConfig holds the worker pool, recovery loop, and locking
// knobs named in SPEC_FULL.md §6's config table.
type OrchestratorConfig struct {
	WorkerCount                 int
	RecoveryPeriodSeconds        int
	DefaultHandlerTimeoutSeconds int
	GroupLockTTLSeconds          int
	ActiveGroupsSampleSize       int
}

// GraphEngineConfig holds the connection settings for the external graph
// engine collaborator reached through graphenginehttp.Client.
type GraphEngineConfig struct {
	BaseURL string
}

// Load loads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		HTTP: HTTPConfig{
			Port:        getEnvInt("HTTP_PORT", 8080),
			CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:4200"}),
		},

		Journal: JournalConfig{
			DSN: getEnv("JOURNAL_POSTGRES_DSN", "postgres://localhost:5432/orchestrator?sslmode=disable"),
		},

		Queue: QueueConfig{
			RedisURL: getEnv("QUEUE_REDIS_URL", "redis://localhost:6379/0"),
		},

		Orchestrator: OrchestratorConfig{
			WorkerCount:                  getEnvInt("WORKER_COUNT", 4),
			RecoveryPeriodSeconds:        getEnvInt("RECOVERY_PERIOD_SECONDS", 60),
			DefaultHandlerTimeoutSeconds: getEnvInt("DEFAULT_HANDLER_TIMEOUT_SECONDS", 600),
			GroupLockTTLSeconds:          getEnvInt("GROUP_LOCK_TTL_SECONDS", 3600),
			ActiveGroupsSampleSize:       getEnvInt("ACTIVE_GROUPS_SAMPLE_SIZE", 5),
		},

		GraphEngine: GraphEngineConfig{
			BaseURL: getEnv("GRAPH_ENGINE_BASE_URL", "http://localhost:9090"),
		},

		DevMode: getEnvBool("ORCHESTRATOR_DEV", false),
	}

	return cfg, nil
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.Split(value, ",")
	}
	return defaultValue
}
