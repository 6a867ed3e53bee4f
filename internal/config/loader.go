package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// TOMLConfig represents the TOML configuration file structure
type TOMLConfig struct {
	HTTP         TOMLHTTPConfig         `toml:"http"`
	Journal      TOMLJournalConfig      `toml:"journal"`
	Queue        TOMLQueueConfig        `toml:"queue"`
	Orchestrator TOMLOrchestratorConfig `toml:"orchestrator"`
	GraphEngine  TOMLGraphEngineConfig  `toml:"graph_engine"`
	DevMode      bool                   `toml:"dev_mode"`
}

// TOMLHTTPConfig represents HTTP configuration in TOML
type TOMLHTTPConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// TOMLJournalConfig represents Task Journal (Postgres) configuration in TOML
type TOMLJournalConfig struct {
	DSN string `toml:"dsn"`
}

// TOMLQueueConfig represents Queue Store (Redis) configuration in TOML
type TOMLQueueConfig struct {
	RedisURL string `toml:"redis_url"`
}

// TOMLOrchestratorConfig represents the tuning knobs in TOML
type TOMLOrchestratorConfig struct {
	WorkerCount                  int `toml:"worker_count"`
	RecoveryPeriodSeconds        int `toml:"recovery_period_seconds"`
	DefaultHandlerTimeoutSeconds int `toml:"default_handler_timeout_seconds"`
	GroupLockTTLSeconds          int `toml:"group_lock_ttl_seconds"`
	ActiveGroupsSampleSize       int `toml:"active_groups_sample_size"`
}

// TOMLGraphEngineConfig represents graph engine collaborator configuration in TOML
type TOMLGraphEngineConfig struct {
	BaseURL string `toml:"base_url"`
}

// ConfigPaths lists the paths to search for config files
var ConfigPaths = []string{
	"config.toml",
	"orchestrator.toml",
	"./config/config.toml",
	"/etc/orchestrator/config.toml",
}

// LoadFromFile loads configuration from a TOML file
func LoadFromFile(path string) (*Config, error) {
	var tomlCfg TOMLConfig

	if _, err := toml.DecodeFile(path, &tomlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return tomlConfigToConfig(&tomlCfg), nil
}

// LoadWithFile loads configuration from file first, then overrides with env vars
func LoadWithFile() (*Config, error) {
	// Start with defaults from environment
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	// Check for explicit config file path
	configPath := os.Getenv("ORCHESTRATOR_CONFIG")
	if configPath == "" {
		// Search for config file in standard locations
		for _, path := range ConfigPaths {
			if _, err := os.Stat(path); err == nil {
				configPath = path
				break
			}
		}
	}

	// If no config file found, just use env vars
	if configPath == "" {
		return cfg, nil
	}

	// Load from file
	fileCfg, err := LoadFromFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	// Merge: file config as base, env vars override
	return mergeConfigs(fileCfg, cfg), nil
}

// tomlConfigToConfig converts TOML config to the internal Config struct
func tomlConfigToConfig(tc *TOMLConfig) *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:        tc.HTTP.Port,
			CORSOrigins: tc.HTTP.CORSOrigins,
		},
		Journal: JournalConfig{
			DSN: tc.Journal.DSN,
		},
		Queue: QueueConfig{
			RedisURL: tc.Queue.RedisURL,
		},
		Orchestrator: OrchestratorConfig{
			WorkerCount:                  tc.Orchestrator.WorkerCount,
			RecoveryPeriodSeconds:        tc.Orchestrator.RecoveryPeriodSeconds,
			DefaultHandlerTimeoutSeconds: tc.Orchestrator.DefaultHandlerTimeoutSeconds,
			GroupLockTTLSeconds:          tc.Orchestrator.GroupLockTTLSeconds,
			ActiveGroupsSampleSize:       tc.Orchestrator.ActiveGroupsSampleSize,
		},
		GraphEngine: GraphEngineConfig{
			BaseURL: tc.GraphEngine.BaseURL,
		},
		DevMode: tc.DevMode,
	}
}

// mergeConfigs merges two configs, with override taking precedence for non-zero/non-default values
func mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.HTTP.Port != 0 && override.HTTP.Port != 8080 {
		result.HTTP.Port = override.HTTP.Port
	}
	if len(override.HTTP.CORSOrigins) > 0 && !(len(override.HTTP.CORSOrigins) == 1 && override.HTTP.CORSOrigins[0] == "http://localhost:4200") {
		result.HTTP.CORSOrigins = override.HTTP.CORSOrigins
	}

	if override.Journal.DSN != "" && override.Journal.DSN != "postgres://localhost:5432/orchestrator?sslmode=disable" {
		result.Journal.DSN = override.Journal.DSN
	}

	if override.Queue.RedisURL != "" && override.Queue.RedisURL != "redis://localhost:6379/0" {
		result.Queue.RedisURL = override.Queue.RedisURL
	}

	if override.Orchestrator.WorkerCount != 0 && override.Orchestrator.WorkerCount != 4 {
		result.Orchestrator.WorkerCount = override.Orchestrator.WorkerCount
	}
	if override.Orchestrator.RecoveryPeriodSeconds != 0 && override.Orchestrator.RecoveryPeriodSeconds != 60 {
		result.Orchestrator.RecoveryPeriodSeconds = override.Orchestrator.RecoveryPeriodSeconds
	}
	if override.Orchestrator.DefaultHandlerTimeoutSeconds != 0 && override.Orchestrator.DefaultHandlerTimeoutSeconds != 600 {
		result.Orchestrator.DefaultHandlerTimeoutSeconds = override.Orchestrator.DefaultHandlerTimeoutSeconds
	}
	if override.Orchestrator.GroupLockTTLSeconds != 0 && override.Orchestrator.GroupLockTTLSeconds != 3600 {
		result.Orchestrator.GroupLockTTLSeconds = override.Orchestrator.GroupLockTTLSeconds
	}
	if override.Orchestrator.ActiveGroupsSampleSize != 0 && override.Orchestrator.ActiveGroupsSampleSize != 5 {
		result.Orchestrator.ActiveGroupsSampleSize = override.Orchestrator.ActiveGroupsSampleSize
	}

	if override.GraphEngine.BaseURL != "" && override.GraphEngine.BaseURL != "http://localhost:9090" {
		result.GraphEngine.BaseURL = override.GraphEngine.BaseURL
	}

	if override.DevMode {
		result.DevMode = true
	}

	return &result
}

// WriteExampleConfig writes an example configuration file
func WriteExampleConfig(path string) error {
	example := `# Task Orchestrator Configuration
# Environment variables override these settings

[http]
port = 8080
cors_origins = ["http://localhost:4200"]

[journal]
dsn = "postgres://localhost:5432/orchestrator?sslmode=disable"

[queue]
redis_url = "redis://localhost:6379/0"

[orchestrator]
worker_count = 4
recovery_period_seconds = 60
default_handler_timeout_seconds = 600
group_lock_ttl_seconds = 3600
active_groups_sample_size = 5

[graph_engine]
base_url = "http://localhost:9090"

dev_mode = false
`

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	return os.WriteFile(path, []byte(example), 0644)
}
