// Package database opens the connections behind the repositories and
// builds them from configuration.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/duynhne/session-auth/config"
	"github.com/duynhne/session-auth/internal/core/domain"
	"github.com/duynhne/session-auth/internal/core/repository"
)

const connectTimeout = 10 * time.Second

// Stores bundles the repositories the auth service depends on, plus the
// hooks the process needs for health checks and shutdown.
type Stores struct {
	Users    domain.UserRepository
	Sessions domain.SessionStore

	pingers []func(context.Context) error
	closers []func(context.Context) error
}

// Ping checks every backing connection.
func (s *Stores) Ping(ctx context.Context) error {
	var errs []error
	for _, ping := range s.pingers {
		errs = append(errs, ping(ctx))
	}
	return errors.Join(errs...)
}

// Close releases connections in reverse order of opening.
func (s *Stores) Close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i](ctx))
	}
	return errors.Join(errs...)
}

// Open connects the configured credential store and session store and
// ensures the unique email constraint exists.
func Open(ctx context.Context, cfg *config.Config) (*Stores, error) {
	stores := &Stores{}

	if err := openUsers(ctx, cfg, stores); err != nil {
		_ = stores.Close(ctx)
		return nil, err
	}
	if err := openSessions(ctx, cfg, stores); err != nil {
		_ = stores.Close(ctx)
		return nil, err
	}
	return stores, nil
}

func openUsers(ctx context.Context, cfg *config.Config, stores *Stores) error {
	switch cfg.Database.Driver {
	case config.DriverMongo:
		client, err := ConnectMongo(ctx, cfg.Database.MongoURI)
		if err != nil {
			return err
		}
		stores.closers = append(stores.closers, client.Disconnect)
		stores.pingers = append(stores.pingers, func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		})

		users := repository.NewMongoUserRepository(client.Database(cfg.Database.MongoDBName))
		if err := users.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("ensure mongo indexes: %w", err)
		}
		stores.Users = users

	case config.DriverPostgres:
		pool, err := ConnectPostgres(ctx, cfg.Database.PostgresURL)
		if err != nil {
			return err
		}
		stores.closers = append(stores.closers, func(context.Context) error {
			pool.Close()
			return nil
		})
		stores.pingers = append(stores.pingers, pool.Ping)

		users := repository.NewUserRepository(pool)
		if err := users.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure postgres schema: %w", err)
		}
		stores.Users = users

	case config.DriverMemory:
		stores.Users = repository.NewMemoryUserRepository()

	default:
		return fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
	return nil
}

func openSessions(ctx context.Context, cfg *config.Config, stores *Stores) error {
	switch cfg.Sessions.Store {
	case config.SessionStoreRedis:
		client, err := ConnectRedis(ctx, cfg.Sessions.RedisURL)
		if err != nil {
			return err
		}
		stores.closers = append(stores.closers, func(context.Context) error {
			return client.Close()
		})
		stores.pingers = append(stores.pingers, func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		stores.Sessions = repository.NewRedisSessionStore(client)

	case config.SessionStoreMemory:
		stores.Sessions = repository.NewMemorySessionStore()

	default:
		return fmt.Errorf("unknown session store %q", cfg.Sessions.Store)
	}
	return nil
}

// ConnectMongo connects to MongoDB and verifies the primary is reachable.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetConnectTimeout(connectTimeout))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// ConnectPostgres opens a pgx pool and verifies connectivity.
func ConnectPostgres(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	poolCfg.MaxConns = 25
	poolCfg.MinConns = 2
	poolCfg.MaxConnIdleTime = 2 * time.Minute
	poolCfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// ConnectRedis parses a redis:// URL, connects and pings.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
