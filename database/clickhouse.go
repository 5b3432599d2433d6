package database

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

type ClickHouseClient struct {
	Conn clickhouse.Conn
}

// ClickHouseConfig is read from the CLICKHOUSE_* variables the storefront API uses.
type ClickHouseConfig struct {
	Host       string
	NativePort int
	Database   string
	Username   string
	Password   string
}

func ClickHouseConfigFromEnv() (ClickHouseConfig, error) {
	host := os.Getenv("CLICKHOUSE_HOST")
	nativePortStr := os.Getenv("CLICKHOUSE_NATIVE_PORT")
	dbName := os.Getenv("CLICKHOUSE_DB_NAME")

	if host == "" || nativePortStr == "" || dbName == "" {
		return ClickHouseConfig{}, fmt.Errorf("CLICKHOUSE_HOST, CLICKHOUSE_NATIVE_PORT, or CLICKHOUSE_DB_NAME environment variables are not set")
	}

	nativePort, err := strconv.Atoi(nativePortStr)
	if err != nil {
		return ClickHouseConfig{}, fmt.Errorf("invalid CLICKHOUSE_NATIVE_PORT: %w", err)
	}

	return ClickHouseConfig{
		Host:       host,
		NativePort: nativePort,
		Database:   dbName,
		Username:   os.Getenv("CLICKHOUSE_USERNAME"),
		Password:   os.Getenv("CLICKHOUSE_PASSWORD"),
	}, nil
}

func NewClickHouseDB(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseClient, error) {
	options := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.NativePort)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{{Name: "mable-tracker", Version: "1.0.0"}},
		},
		// the tracker inserts one row per record; let the server batch them
		Settings: clickhouse.Settings{
			"async_insert":          1,
			"wait_for_async_insert": 1,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout:  time.Second * 5,
		MaxOpenConns: 2,
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse via Native TCP: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	slog.Info("Successfully connected to ClickHouse", "component", "database", "addr", options.Addr[0])
	return &ClickHouseClient{Conn: conn}, nil
}

func (c *ClickHouseClient) Close() {
	if c.Conn != nil {
		c.Conn.Close()
		slog.Info("ClickHouse connection closed", "component", "database")
	}
}
