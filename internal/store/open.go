package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-kasir/internal/obs"
)

// Options selects and configures the backend returned by Open.
type Options struct {
	Driver      string
	Prefix      string
	DatabaseURL string
	Redis       *redis.Client
	Metrics     *obs.StoreMetrics
	// SkipMigrations leaves the Postgres schema untouched.
	SkipMigrations bool
}

// Open builds the configured state store. The returned close func releases backend resources.
func Open(ctx context.Context, opts Options) (KV, func(), error) {
	var (
		backend KV
		closer  = func() {}
	)
	switch opts.Driver {
	case "", "memory":
		backend = NewMemoryKV()
		opts.Driver = "memory"
	case "redis":
		if opts.Redis == nil {
			return nil, nil, errors.New("redis store requires a redis client")
		}
		backend = RedisKV{R: opts.Redis}
	case "postgres":
		if !opts.SkipMigrations {
			if err := Migrate(opts.DatabaseURL); err != nil {
				return nil, nil, err
			}
		}
		poolCfg, err := pgxpool.ParseConfig(opts.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse database url: %w", err)
		}
		poolCfg.ConnConfig.Tracer = obs.PGXTracer{Table: "kv_state"}
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		backend = PostgresKV{Pool: pool}
		closer = pool.Close
	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", opts.Driver)
	}

	var kv KV = Instrumented{KV: backend, Driver: opts.Driver, Metrics: opts.Metrics}
	if opts.Prefix != "" {
		kv = Namespaced{KV: kv, Prefix: opts.Prefix}
	}
	return kv, closer, nil
}
