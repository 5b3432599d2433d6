// tracker/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"mabletask/tracker/config"
	"mabletask/tracker/database"
	"mabletask/tracker/probe"
	"mabletask/tracker/store"
	"mabletask/tracker/tracker"
	"mabletask/tracker/transport"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func main() {
	scriptPath := flag.String("script", "", "JSONL navigation script to replay (default: stdin)")
	userAgent := flag.String("user-agent", defaultUserAgent, "user agent reported with every visit")
	verbose := flag.Bool("v", false, "log dispatch passes")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Load .env and TRACKER_* overrides
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid tracker configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Initialize sink (HTTP collector or ClickHouse) ---
	sink, closeSink, err := newTransport(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize %s sink: %v", cfg.Sink, err)
	}
	defer closeSink()

	// --- Initialize session storage ---
	storage, closeStorage, err := newStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize %s storage: %v", cfg.Storage, err)
	}
	defer closeStorage()

	var input io.Reader = os.Stdin
	if *scriptPath != "" {
		f, err := os.Open(*scriptPath)
		if err != nil {
			log.Fatalf("Failed to open script: %v", err)
		}
		defer f.Close()
		input = f
	}

	env := probe.NewStatic(*userAgent)
	client := tracker.New(cfg, sink,
		tracker.WithEnvironment(env),
		tracker.WithStorage(storage),
		tracker.WithLogger(logger),
	)

	steps, err := replay(ctx, client, env, input, sleepCtx)
	if err != nil {
		logger.Error("Script stopped", "steps", steps, "error", err)
	} else {
		logger.Info("Script finished", "steps", steps)
	}

	// Teardown: forced flush and checkpoint, bounded like a page unload.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client.Close(shutdownCtx)

	visits, pixels := client.Pending()
	fmt.Fprintf(os.Stdout, "session %s: %d visits and %d events left unsent\n", client.SessionID(), visits, pixels)
}

func newTransport(ctx context.Context, cfg config.Config) (transport.Transport, func(), error) {
	switch cfg.Sink {
	case config.SinkClickHouse:
		chCfg, err := database.ClickHouseConfigFromEnv()
		if err != nil {
			return nil, nil, err
		}
		chClient, err := database.NewClickHouseDB(ctx, chCfg)
		if err != nil {
			return nil, nil, err
		}
		return transport.NewClickHouseTransport(chClient), chClient.Close, nil
	default:
		httpClient := &http.Client{Transport: http.DefaultTransport}
		return transport.NewHTTPTransport(cfg.Endpoint, cfg.APIKey, httpClient), httpClient.CloseIdleConnections, nil
	}
}

func newStorage(ctx context.Context, cfg config.Config) (store.Storage, func(), error) {
	switch cfg.Storage {
	case config.StorageFile:
		path := cfg.StateFile
		if path == "" {
			path = filepath.Join(os.TempDir(), "mable-tracker-session.json")
		}
		return store.NewFileStorage(path), func() {}, nil
	case config.StoragePostgres:
		dbClient, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		pg := store.NewPostgresStorage(dbClient.DB)
		if err := pg.EnsureSchema(ctx); err != nil {
			dbClient.Close()
			return nil, nil, err
		}
		return pg, dbClient.Close, nil
	default:
		return store.NewMemoryStorage(), func() {}, nil
	}
}
