package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/flowauth/adapters/events"
	"github.com/layer-3/flowauth/adapters/store"
	"github.com/layer-3/flowauth/internal/config"
	"github.com/layer-3/flowauth/internal/logging"
	"github.com/layer-3/flowauth/ports"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// backends holds the storage and event adapters selected by configuration
type backends struct {
	nonces   ports.NonceStore
	tokens   ports.TokenStore
	daos     ports.DAOStore
	eventPub ports.EventPublisher

	closers []func() error
}

func (b *backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

func openBackends(ctx context.Context, cfg *config.Config) (_ *backends, err error) {
	b := &backends{}
	defer func() {
		if err != nil {
			_ = b.Close()
		}
	}()

	memory := store.NewMemoryStore()
	b.nonces, b.tokens, b.daos = memory, memory, memory

	var redisClient *redis.Client
	if cfg.Storage.Nonces == config.DriverRedis || cfg.Events.Driver == config.EventsRedis {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
		b.closers = append(b.closers, redisClient.Close)

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	var gormStore *store.GormStore
	if cfg.Storage.Nonces == config.DriverSQLite || cfg.Storage.Documents == config.DriverSQLite {
		db, err := store.OpenSQLite(cfg.Storage.SQLitePath, log.Logger)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, sqlDB.Close)

		if gormStore, err = store.NewGormStore(db); err != nil {
			return nil, err
		}
	}

	var bunStore *store.BunStore
	if cfg.Storage.Nonces == config.DriverPostgres || cfg.Storage.Documents == config.DriverPostgres {
		db, err := store.OpenPostgres(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)

		if bunStore, err = store.NewBunStore(ctx, db); err != nil {
			return nil, err
		}
	}

	switch cfg.Storage.Nonces {
	case config.DriverRedis:
		redisStore := store.NewRedisStore(redisClient, cfg.Auth.NonceRetention)
		b.nonces, b.tokens = redisStore, redisStore
	case config.DriverSQLite:
		b.nonces, b.tokens = gormStore, gormStore
	case config.DriverPostgres:
		b.nonces, b.tokens = bunStore, bunStore
	}

	switch cfg.Storage.Documents {
	case config.DriverSQLite:
		b.daos = gormStore
	case config.DriverPostgres:
		b.daos = bunStore
	}

	wmLogger := logging.NewWatermillLogger(log.Logger)
	var publisher message.Publisher
	switch cfg.Events.Driver {
	case config.EventsRedis:
		if publisher, err = events.NewRedisStreamPublisher(redisClient, wmLogger); err != nil {
			return nil, err
		}
	default:
		publisher = events.NewInProcessPubSub(wmLogger)
	}
	b.closers = append(b.closers, publisher.Close)
	b.eventPub = events.NewWatermillPublisher(publisher)

	log.Info().
		Str("nonces", cfg.Storage.Nonces).
		Str("documents", cfg.Storage.Documents).
		Str("events", cfg.Events.Driver).
		Msg("backends ready")

	return b, nil
}
