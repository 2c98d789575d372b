// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Ledger drivers.
const (
	LedgerSQLite   = "sqlite"
	LedgerPostgres = "postgres"
	LedgerMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	// Logging.
	LogLevel  string
	LogFormat string // "json" or "text"

	// Pipeline settings.
	ClusterRadiusMeters float64
	MaxFileBytes        int64
	MinFileBytes        int64
	ExtractWorkers      int
	ThumbnailMaxDim     int // 0 disables thumbnails.

	// Orchestrator settings.
	TaskTimeout     time.Duration // 0 means no per-task deadline.
	MaxStepParallel int           // 0 means unbounded.

	// Evidence ledger.
	LedgerDriver string
	LedgerPath   string // sqlite file path.
	DatabaseURL  string // Postgres DSN.
	Analyst      string

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string
}

// Load reads configuration from environment variables with sensible defaults.
// Malformed values are reported rather than silently replaced by defaults.
func Load() (Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg := Config{
		LogLevel:     envStr("FIELDMARK_LOG_LEVEL", "info"),
		LogFormat:    envStr("FIELDMARK_LOG_FORMAT", "json"),
		LedgerDriver: envStr("FIELDMARK_LEDGER_DRIVER", LedgerSQLite),
		LedgerPath:   envStr("FIELDMARK_LEDGER_PATH", "fieldmark-ledger.db"),
		DatabaseURL:  envStr("DATABASE_URL", ""),
		Analyst:      envStr("FIELDMARK_ANALYST", ""),
		OTELEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:  envStr("OTEL_SERVICE_NAME", "fieldmark"),
	}

	var err error
	cfg.ClusterRadiusMeters, err = envFloat("FIELDMARK_CLUSTER_RADIUS_METERS", 100)
	collect(err)
	cfg.MaxFileBytes, err = envInt64("FIELDMARK_MAX_FILE_BYTES", 50*1024*1024)
	collect(err)
	cfg.MinFileBytes, err = envInt64("FIELDMARK_MIN_FILE_BYTES", 1024)
	collect(err)
	cfg.ExtractWorkers, err = envInt("FIELDMARK_EXTRACT_WORKERS", 4)
	collect(err)
	cfg.ThumbnailMaxDim, err = envInt("FIELDMARK_THUMBNAIL_MAX_DIM", 256)
	collect(err)
	cfg.TaskTimeout, err = envDuration("FIELDMARK_TASK_TIMEOUT", 0)
	collect(err)
	cfg.MaxStepParallel, err = envInt("FIELDMARK_MAX_STEP_PARALLEL", 0)
	collect(err)
	cfg.OTELInsecure, err = envBool("FIELDMARK_OTEL_INSECURE", false)
	collect(err)

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if c.ClusterRadiusMeters <= 0 {
		return fmt.Errorf("config: FIELDMARK_CLUSTER_RADIUS_METERS must be positive")
	}
	if c.MinFileBytes < 0 || c.MaxFileBytes <= c.MinFileBytes {
		return fmt.Errorf("config: FIELDMARK_MAX_FILE_BYTES must exceed FIELDMARK_MIN_FILE_BYTES")
	}
	if c.ExtractWorkers < 0 {
		return fmt.Errorf("config: FIELDMARK_EXTRACT_WORKERS must not be negative")
	}
	if c.ThumbnailMaxDim < 0 {
		return fmt.Errorf("config: FIELDMARK_THUMBNAIL_MAX_DIM must not be negative")
	}
	if c.TaskTimeout < 0 {
		return fmt.Errorf("config: FIELDMARK_TASK_TIMEOUT must not be negative")
	}
	if c.MaxStepParallel < 0 {
		return fmt.Errorf("config: FIELDMARK_MAX_STEP_PARALLEL must not be negative")
	}
	switch c.LedgerDriver {
	case LedgerSQLite:
		if c.LedgerPath == "" {
			return fmt.Errorf("config: FIELDMARK_LEDGER_PATH is required for the sqlite ledger")
		}
	case LedgerPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required for the postgres ledger")
		}
	case LedgerMemory:
	default:
		return fmt.Errorf("config: unknown FIELDMARK_LEDGER_DRIVER %q (want sqlite, postgres, or memory)", c.LedgerDriver)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("config: FIELDMARK_LOG_FORMAT must be json or text")
	}
	return nil
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to Info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
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

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envInt64(key string, defaultVal int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid number", key, v)
	}
	return f, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}
