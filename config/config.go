// Package config loads stockroom settings from an optional TOML file and
// STOCKROOM_* environment variables. Environment values win over the file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	HTTPAddr string `toml:"http_addr"` // STOCKROOM_HTTP_ADDR (default ":8080")

	StoreDriver string `toml:"store_driver"` // STOCKROOM_STORE (memory | sqlite | postgres, default sqlite)
	SQLitePath  string `toml:"sqlite_path"`  // STOCKROOM_SQLITE_PATH (default "stockroom.db")
	DatabaseURL string `toml:"database_url"` // STOCKROOM_DATABASE_URL (required for postgres)

	// Event delivery; both empty means events are dropped.
	NATSURL string `toml:"nats_url"` // STOCKROOM_NATS_URL
	AMQPURL string `toml:"amqp_url"` // STOCKROOM_AMQP_URL

	// Distributed locks; empty RedisAddr means in-process locks.
	RedisAddr     string        `toml:"redis_addr"`     // STOCKROOM_REDIS_ADDR
	RedisPassword string        `toml:"redis_password"` // STOCKROOM_REDIS_PASSWORD
	RedisDB       int           `toml:"redis_db"`       // STOCKROOM_REDIS_DB
	LockTTL       time.Duration `toml:"lock_ttl"`       // STOCKROOM_LOCK_TTL (default 10s)

	LowStockThreshold int64 `toml:"low_stock_threshold"` // STOCKROOM_LOW_STOCK_THRESHOLD (default 5, negative disables, 0 rejected)

	AuditInterval time.Duration `toml:"audit_interval"` // STOCKROOM_AUDIT_INTERVAL (default 1h, 0 disables)

	LogLevel  string `toml:"log_level"`  // STOCKROOM_LOG_LEVEL (debug | info | warn | error)
	LogFormat string `toml:"log_format"` // STOCKROOM_LOG_FORMAT (text | json)
}

func defaults() Config {
	return Config{
		HTTPAddr:          ":8080",
		StoreDriver:       DriverSQLite,
		SQLitePath:        "stockroom.db",
		LockTTL:           10 * time.Second,
		LowStockThreshold: 5,
		AuditInterval:     time.Hour,
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// Load builds the configuration. path names a TOML file; when empty,
// STOCKROOM_CONFIG is consulted and a missing setting means no file.
func Load(path string) (*Config, error) {
	c := defaults()

	if path == "" {
		path = os.Getenv("STOCKROOM_CONFIG")
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, &c); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyEnv() error {
	c.HTTPAddr = envOrDefault("STOCKROOM_HTTP_ADDR", c.HTTPAddr)
	c.StoreDriver = strings.ToLower(envOrDefault("STOCKROOM_STORE", c.StoreDriver))
	c.SQLitePath = envOrDefault("STOCKROOM_SQLITE_PATH", c.SQLitePath)
	c.DatabaseURL = envOrDefault("STOCKROOM_DATABASE_URL", c.DatabaseURL)
	c.NATSURL = envOrDefault("STOCKROOM_NATS_URL", c.NATSURL)
	c.AMQPURL = envOrDefault("STOCKROOM_AMQP_URL", c.AMQPURL)
	c.RedisAddr = envOrDefault("STOCKROOM_REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = envOrDefault("STOCKROOM_REDIS_PASSWORD", c.RedisPassword)
	c.LogLevel = envOrDefault("STOCKROOM_LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOrDefault("STOCKROOM_LOG_FORMAT", c.LogFormat)

	if v := os.Getenv("STOCKROOM_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("STOCKROOM_REDIS_DB: %w", err)
		}
		c.RedisDB = n
	}
	if v := os.Getenv("STOCKROOM_LOCK_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("STOCKROOM_LOCK_TTL: %w", err)
		}
		c.LockTTL = d
	}
	if v := os.Getenv("STOCKROOM_AUDIT_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("STOCKROOM_AUDIT_INTERVAL: %w", err)
		}
		c.AuditInterval = d
	}
	if v := os.Getenv("STOCKROOM_LOW_STOCK_THRESHOLD"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("STOCKROOM_LOW_STOCK_THRESHOLD: %w", err)
		}
		c.LowStockThreshold = n
	}
	return nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("STOCKROOM_DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("lock ttl must be positive, got %s", c.LockTTL)
	}
	if c.LowStockThreshold == 0 {
		return errors.New("low stock threshold must not be 0: use a positive value, or a negative one to disable")
	}
	if c.AuditInterval < 0 {
		return fmt.Errorf("audit interval must not be negative, got %s", c.AuditInterval)
	}
	if _, err := c.level(); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

func (c *Config) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return l, nil
}

// Logger returns a slog.Logger writing to w in the configured format.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := c.level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
