package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/warp/stockroom/config"
	"github.com/warp/stockroom/events"
	"github.com/warp/stockroom/inventory"
	"github.com/warp/stockroom/inventory/store"
	"github.com/warp/stockroom/lock"
	"github.com/warp/stockroom/store/postgres"
	"github.com/warp/stockroom/store/sqlite"
)

// openStore opens the configured backend. The returned func closes it.
func openStore(cfg *config.Config) (inventory.TxStore, func() error, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return store.NewMemory(), func() error { return nil }, nil
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.DriverPostgres:
		s, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// newLocker returns a Redis-backed locker when Redis is configured, so
// several instances can share one database. The returned func closes the
// client.
func newLocker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (inventory.Locker, func() error, error) {
	if cfg.RedisAddr == "" {
		logger.Info("using in-process locks (STOCKROOM_REDIS_ADDR not set)")
		return lock.NewLocal(), func() error { return nil }, nil
	}
	client, err := lock.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("using redis locks", "addr", cfg.RedisAddr, "ttl", cfg.LockTTL)
	return lock.NewRedis(client, "stockroom:lock:", cfg.LockTTL), client.Close, nil
}

// newPublisher prefers NATS, then AMQP, then drops events.
func newPublisher(cfg *config.Config, logger *slog.Logger) (events.Publisher, error) {
	switch {
	case cfg.NATSURL != "":
		pub, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			return nil, err
		}
		logger.Info("events enabled", "transport", "nats", "url", cfg.NATSURL)
		return pub, nil
	case cfg.AMQPURL != "":
		pub, err := events.NewAMQPPublisher(cfg.AMQPURL)
		if err != nil {
			return nil, err
		}
		logger.Info("events enabled", "transport", "amqp")
		return pub, nil
	default:
		logger.Info("events disabled (no STOCKROOM_NATS_URL or STOCKROOM_AMQP_URL)")
		return &events.NoopPublisher{}, nil
	}
}
