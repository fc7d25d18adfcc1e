// Package config loads runtime configuration from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is built once at startup and passed down explicitly.
type Config struct {
	Port         int
	DatabasePath string
	Log          LogConfig
	GCP          GCPConfig
	Export       ExportConfig
}

// LogConfig selects the logger level and output format.
type LogConfig struct {
	Level  string // zerolog level name
	Format string // "console" or "json"
}

// GCPConfig locates the optional export targets.
type GCPConfig struct {
	Project         string
	BigQueryDataset string
	BigQueryTable   string
	Bucket          string
}

// ExportConfig sizes the background export queue.
type ExportConfig struct {
	QueueSize int
	Workers   int
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; an explicit envPath must exist.
// Variables already set in the environment win over .env entries.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("loading %s: %w", envPath[0], err)
		}
	} else {
		_ = godotenv.Load()
	}

	port, err := intEnv("PORT", 8080)
	if err != nil {
		return nil, err
	}
	queueSize, err := intEnv("EXPORT_QUEUE_SIZE", 100)
	if err != nil {
		return nil, err
	}
	workers, err := intEnv("EXPORT_WORKERS", 2)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:         port,
		DatabasePath: getEnvOrDefault("DATABASE_PATH", "./data/ledger.db"),
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "console"),
		},
		GCP: GCPConfig{
			Project:         os.Getenv("GCP_PROJECT"),
			BigQueryDataset: getEnvOrDefault("BIGQUERY_DATASET", "finance"),
			BigQueryTable:   getEnvOrDefault("BIGQUERY_TABLE", "ledger_transactions"),
			Bucket:          os.Getenv("GCS_BUCKET"),
		},
		Export: ExportConfig{
			QueueSize: queueSize,
			Workers:   workers,
		},
	}

	if cfg.Log.Format != "console" && cfg.Log.Format != "json" {
		return nil, fmt.Errorf("invalid LOG_FORMAT %q: want console or json", cfg.Log.Format)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid PORT %d", cfg.Port)
	}
	if cfg.Export.QueueSize <= 0 || cfg.Export.Workers <= 0 {
		return nil, fmt.Errorf("EXPORT_QUEUE_SIZE and EXPORT_WORKERS must be positive")
	}

	return cfg, nil
}

// Validate reports every required key that is empty. Keys are dotted paths
// such as "gcp.project" or "gcp.bucket".
func (c *Config) Validate(required ...string) error {
	var missing []string
	for _, key := range required {
		var value string
		switch key {
		case "database.path":
			value = c.DatabasePath
		case "gcp.project":
			value = c.GCP.Project
		case "gcp.bucket":
			value = c.GCP.Bucket
		case "bigquery.dataset":
			value = c.GCP.BigQueryDataset
		case "bigquery.table":
			value = c.GCP.BigQueryTable
		default:
			return fmt.Errorf("unknown configuration key %q", key)
		}
		if value == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func intEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value for %s: %s", key, value)
	}
	return n, nil
}
