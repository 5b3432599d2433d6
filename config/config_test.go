package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.QueueCapacity != 100 || cfg.PixelHighWater != 10 || cfg.MaxRetries != 3 {
		t.Errorf("queue/retry defaults = %+v", cfg)
	}
	if cfg.FlushInterval != 30*time.Second || cfg.CheckpointInterval != time.Minute {
		t.Errorf("interval defaults = %v / %v", cfg.FlushInterval, cfg.CheckpointInterval)
	}
	if cfg.RetryBaseDelay != time.Second || cfg.RequestTimeout != 10*time.Second {
		t.Errorf("dispatch defaults = %v / %v", cfg.RetryBaseDelay, cfg.RequestTimeout)
	}
	if !reflect.DeepEqual(cfg.ExcludedPaths, []string{"/admin"}) {
		t.Errorf("ExcludedPaths = %v", cfg.ExcludedPaths)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("TRACKER_ENDPOINT", "https://collector.example.com")
	t.Setenv("TRACKER_API_KEY", "k")
	t.Setenv("TRACKER_QUEUE_CAPACITY", "50")
	t.Setenv("TRACKER_PIXEL_HIGH_WATER", "5")
	t.Setenv("TRACKER_MAX_RETRIES", "2")
	t.Setenv("TRACKER_RETRY_BASE_DELAY", "500ms")
	t.Setenv("TRACKER_FLUSH_INTERVAL", "10s")
	t.Setenv("TRACKER_EXCLUDED_PATHS", "/admin, /internal ,")
	t.Setenv("TRACKER_SINK", "ClickHouse")
	t.Setenv("TRACKER_STORAGE", "file")

	cfg, err := FromEnv(Default())
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Endpoint != "https://collector.example.com" || cfg.APIKey != "k" {
		t.Errorf("endpoint/key = %q %q", cfg.Endpoint, cfg.APIKey)
	}
	if cfg.QueueCapacity != 50 || cfg.PixelHighWater != 5 || cfg.MaxRetries != 2 {
		t.Errorf("ints = %d %d %d", cfg.QueueCapacity, cfg.PixelHighWater, cfg.MaxRetries)
	}
	if cfg.RetryBaseDelay != 500*time.Millisecond || cfg.FlushInterval != 10*time.Second {
		t.Errorf("durations = %v %v", cfg.RetryBaseDelay, cfg.FlushInterval)
	}
	if !reflect.DeepEqual(cfg.ExcludedPaths, []string{"/admin", "/internal"}) {
		t.Errorf("ExcludedPaths = %v", cfg.ExcludedPaths)
	}
	if cfg.Sink != SinkClickHouse || cfg.Storage != StorageFile {
		t.Errorf("sink/storage = %q %q", cfg.Sink, cfg.Storage)
	}

	opts := cfg.DispatchOptions()
	if opts.MaxRetries != 2 || opts.BaseDelay != 500*time.Millisecond {
		t.Errorf("DispatchOptions = %+v", opts)
	}
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"TRACKER_QUEUE_CAPACITY", "lots", "TRACKER_QUEUE_CAPACITY"},
		{"TRACKER_QUEUE_CAPACITY", "0", "queue capacity"},
		{"TRACKER_REQUEST_TIMEOUT", "10", "TRACKER_REQUEST_TIMEOUT"},
		{"TRACKER_SINK", "kafka", "unknown sink"},
		{"TRACKER_STORAGE", "redis", "unknown storage"},
		{"TRACKER_MAX_RETRIES", "-1", "max retries"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			cfg, err := FromEnv(Default())
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %q", err, tt.want)
			}
			if cfg.QueueCapacity != 100 {
				t.Error("failed load should return the base config")
			}
		})
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("TRACKER_VISIT_COOLDOWN=45s\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Chdir(wd)
		os.Unsetenv("TRACKER_VISIT_COOLDOWN")
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.VisitCooldown != 45*time.Second {
		t.Errorf("VisitCooldown = %v, want 45s", cfg.VisitCooldown)
	}
}
