// Package config provides the tracker's defaults and their environment overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"mabletask/tracker/dispatch"
	"mabletask/tracker/store"
)

const (
	SinkHTTP       = "http"
	SinkClickHouse = "clickhouse"

	StorageMemory   = "memory"
	StorageFile     = "file"
	StoragePostgres = "postgres"
)

type Config struct {
	Endpoint string // collector base URL for the http sink
	APIKey   string

	QueueCapacity  int
	PixelHighWater int

	MaxRetries     int
	RetryBaseDelay time.Duration
	RequestTimeout time.Duration

	FlushInterval      time.Duration
	CheckpointInterval time.Duration

	VisitCooldown time.Duration
	ExcludedPaths []string

	StateKey  string
	StateFile string

	Sink        string
	Storage     string
	DatabaseURL string
}

func Default() Config {
	return Config{
		Endpoint:           "http://localhost:8080",
		QueueCapacity:      100,
		PixelHighWater:     10,
		MaxRetries:         dispatch.DefaultMaxRetries,
		RetryBaseDelay:     dispatch.DefaultBaseDelay,
		RequestTimeout:     dispatch.DefaultTimeout,
		FlushInterval:      30 * time.Second,
		CheckpointInterval: 60 * time.Second,
		VisitCooldown:      30 * time.Second,
		ExcludedPaths:      []string{"/admin"},
		StateKey:           store.DefaultStateKey,
		Sink:               SinkHTTP,
		Storage:            StorageMemory,
	}
}

// Load reads an optional .env file and applies TRACKER_* overrides to Default.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found or error loading .env", "error", err)
	}
	return FromEnv(Default())
}

// FromEnv applies environment overrides on top of base.
func FromEnv(base Config) (Config, error) {
	cfg := base
	var err error

	cfg.Endpoint = envString("TRACKER_ENDPOINT", cfg.Endpoint)
	cfg.APIKey = envString("TRACKER_API_KEY", cfg.APIKey)
	cfg.StateKey = envString("TRACKER_STATE_KEY", cfg.StateKey)
	cfg.StateFile = envString("TRACKER_STATE_FILE", cfg.StateFile)
	cfg.Sink = strings.ToLower(envString("TRACKER_SINK", cfg.Sink))
	cfg.Storage = strings.ToLower(envString("TRACKER_STORAGE", cfg.Storage))
	cfg.DatabaseURL = envString("DATABASE_URL", cfg.DatabaseURL)

	if cfg.QueueCapacity, err = envInt("TRACKER_QUEUE_CAPACITY", cfg.QueueCapacity); err != nil {
		return base, err
	}
	if cfg.PixelHighWater, err = envInt("TRACKER_PIXEL_HIGH_WATER", cfg.PixelHighWater); err != nil {
		return base, err
	}
	if cfg.MaxRetries, err = envInt("TRACKER_MAX_RETRIES", cfg.MaxRetries); err != nil {
		return base, err
	}
	if cfg.RetryBaseDelay, err = envDuration("TRACKER_RETRY_BASE_DELAY", cfg.RetryBaseDelay); err != nil {
		return base, err
	}
	if cfg.RequestTimeout, err = envDuration("TRACKER_REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return base, err
	}
	if cfg.FlushInterval, err = envDuration("TRACKER_FLUSH_INTERVAL", cfg.FlushInterval); err != nil {
		return base, err
	}
	if cfg.CheckpointInterval, err = envDuration("TRACKER_CHECKPOINT_INTERVAL", cfg.CheckpointInterval); err != nil {
		return base, err
	}
	if cfg.VisitCooldown, err = envDuration("TRACKER_VISIT_COOLDOWN", cfg.VisitCooldown); err != nil {
		return base, err
	}
	if v, ok := os.LookupEnv("TRACKER_EXCLUDED_PATHS"); ok {
		cfg.ExcludedPaths = splitList(v)
	}

	if err := cfg.Validate(); err != nil {
		return base, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	switch {
	case c.QueueCapacity < 1:
		return fmt.Errorf("queue capacity must be positive, got %d", c.QueueCapacity)
	case c.PixelHighWater < 1:
		return fmt.Errorf("pixel high-water mark must be positive, got %d", c.PixelHighWater)
	case c.MaxRetries < 0:
		return fmt.Errorf("max retries must not be negative, got %d", c.MaxRetries)
	case c.RetryBaseDelay <= 0 || c.RequestTimeout <= 0:
		return fmt.Errorf("retry base delay and request timeout must be positive")
	case c.FlushInterval <= 0 || c.CheckpointInterval <= 0:
		return fmt.Errorf("flush and checkpoint intervals must be positive")
	case c.VisitCooldown < 0:
		return fmt.Errorf("visit cooldown must not be negative, got %s", c.VisitCooldown)
	}
	switch c.Sink {
	case SinkHTTP, SinkClickHouse:
	default:
		return fmt.Errorf("unknown sink %q", c.Sink)
	}
	switch c.Storage {
	case StorageMemory, StorageFile, StoragePostgres:
	default:
		return fmt.Errorf("unknown storage %q", c.Storage)
	}
	return nil
}

// DispatchOptions projects the retry settings for the dispatcher.
func (c Config) DispatchOptions() dispatch.Options {
	return dispatch.Options{
		MaxRetries: c.MaxRetries,
		BaseDelay:  c.RetryBaseDelay,
		Timeout:    c.RequestTimeout,
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
