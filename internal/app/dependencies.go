// Package app assembles the services, stores and middleware shared by the API and tools.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/backend-kasir/internal/analytics"
	"github.com/noah-isme/backend-kasir/internal/audit"
	"github.com/noah-isme/backend-kasir/internal/auth"
	"github.com/noah-isme/backend-kasir/internal/backup"
	"github.com/noah-isme/backend-kasir/internal/cache"
	"github.com/noah-isme/backend-kasir/internal/cart"
	"github.com/noah-isme/backend-kasir/internal/catalog"
	"github.com/noah-isme/backend-kasir/internal/checkout"
	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/config"
	"github.com/noah-isme/backend-kasir/internal/customer"
	"github.com/noah-isme/backend-kasir/internal/events"
	"github.com/noah-isme/backend-kasir/internal/importer"
	"github.com/noah-isme/backend-kasir/internal/ledger"
	"github.com/noah-isme/backend-kasir/internal/lock"
	"github.com/noah-isme/backend-kasir/internal/obs"
	"github.com/noah-isme/backend-kasir/internal/promotion"
	"github.com/noah-isme/backend-kasir/internal/ratelimit"
	"github.com/noah-isme/backend-kasir/internal/sales"
	"github.com/noah-isme/backend-kasir/internal/store"
	"github.com/noah-isme/backend-kasir/internal/supplier"
	"github.com/noah-isme/backend-kasir/internal/user"
)

// Dependencies holds every service built from one configuration.
type Dependencies struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Registry prometheus.Registerer

	KV    store.KV
	Redis *redis.Client

	Ledger     *ledger.Service
	Catalog    *catalog.Service
	Sales      *sales.Service
	Backups    *backup.Service
	Importer   *importer.Service
	Promotions *promotion.Service
	Carts      *cart.Service
	Checkout   *checkout.Service
	Customers  *customer.Service
	Suppliers  *supplier.Service
	Users      *user.Service
	Auth       *auth.Service
	Analytics  *analytics.Service
	Audit      *audit.Service
	AuditLog   *audit.KVStore
	Bus        *events.Bus
	EventLog   *events.KVStore

	LoginLimiter *limiter.Limiter
	Idem         common.Idem

	closers []func()
}

// Options tweaks New for tests and tools.
type Options struct {
	// Redis overrides the client built from REDIS_URL.
	Redis *redis.Client
	// Registry receives the Prometheus collectors; nil uses the default registerer.
	Registry prometheus.Registerer
	// SkipAdmin leaves the user list untouched.
	SkipAdmin bool
}

// New connects the configured backends and wires the services on top of them.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: config is required")
	}
	d := &Dependencies{Config: cfg, Logger: logger, Registry: opts.Registry}

	rdb := opts.Redis
	if rdb == nil && cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb = redis.NewClient(redisOpts)
		if cfg.Obs.TracingEnabled {
			if err := redisotel.InstrumentTracing(rdb); err != nil {
				logger.Error().Err(err).Msg("instrument redis tracing")
			}
		}
		if cfg.Obs.MetricsEnabled {
			if err := redisotel.InstrumentMetrics(rdb); err != nil {
				logger.Error().Err(err).Msg("instrument redis metrics")
			}
		}
		d.closers = append(d.closers, func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
	}
	d.Redis = rdb

	var storeMetrics *obs.StoreMetrics
	if cfg.Obs.MetricsEnabled {
		storeMetrics = obs.NewStoreMetrics(cfg.Obs.MetricsNamespace, opts.Registry)
		obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, opts.Registry)
	}
	kv, closeStore, err := store.Open(ctx, store.Options{
		Driver:      cfg.StoreDriver,
		Prefix:      cfg.StorePrefix,
		DatabaseURL: cfg.DatabaseURL,
		Redis:       rdb,
		Metrics:     storeMetrics,
	})
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	d.closers = append(d.closers, closeStore)
	d.KV = kv

	d.EventLog = events.NewKVStore(kv, cfg.EventLogMax)
	d.Bus = &events.Bus{
		Store:     d.EventLog,
		Notifiers: []events.Notifier{events.LogNotifier{Logger: logger}},
		Logger:    logger,
	}

	d.Ledger = ledger.NewService(kv)
	d.Catalog = catalog.NewService(kv, d.Ledger)
	d.Catalog.LockTTL = cfg.LockTTL
	d.Catalog.Events = d.Bus
	if rdb != nil {
		d.Catalog.Locker = lock.Redis{R: rdb, Prefix: cfg.StorePrefix}
	}

	d.Sales = sales.NewService(kv)
	d.Backups = backup.NewService(kv, d.Catalog)
	d.Backups.MaxAuto = cfg.BackupMaxAuto
	d.Backups.Events = d.Bus
	d.Importer = &importer.Service{Catalog: d.Catalog, Backups: d.Backups, Events: d.Bus}
	d.Promotions = promotion.NewService(kv, d.Catalog)
	d.Carts = &cart.Service{KV: kv, Catalog: d.Catalog, Promotions: d.Promotions}
	d.Customers = customer.NewService(kv)
	d.Suppliers = supplier.NewService(kv)
	d.Checkout = &checkout.Service{
		Catalog:    d.Catalog,
		Sales:      d.Sales,
		Promotions: d.Promotions,
		Customers:  d.Customers,
		Events:     d.Bus,
	}

	d.Analytics = &analytics.Service{
		Sales:    d.Sales,
		Products: d.Catalog,
		Cache:    &cache.Store{R: rdb, Prefix: cfg.StorePrefix + ":analytics:", TTL: cfg.AnalyticsCacheTTL},
	}
	d.Bus.Notifiers = append(d.Bus.Notifiers, d.Analytics.Notifier())

	d.AuditLog = audit.NewKVStore(kv, 0)
	d.Audit = &audit.Service{Store: d.AuditLog, Enabled: cfg.AuditEnabled}

	d.Users = user.NewService(kv)
	d.Auth, err = auth.NewService(auth.Config{
		Users:          d.Users,
		Secret:         cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTokenTTL,
		Issuer:         cfg.JWTIssuer,
	})
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("initialise auth: %w", err)
	}
	if !opts.SkipAdmin && cfg.AdminPassword != "" {
		created, err := d.Users.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("bootstrap admin: %w", err)
		}
		if created {
			logger.Info().Str("username", cfg.AdminUsername).Msg("bootstrap admin created")
		}
	}

	d.LoginLimiter, err = ratelimit.NewLimiter(cfg.LoginRateLimit, rdb, cfg.StorePrefix+":rl:login")
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("login rate limit: %w", err)
	}
	d.Idem = common.Idem{R: rdb, TTL: cfg.IdempotencyTTL, Prefix: cfg.StorePrefix + ":idem"}
	return d, nil
}

// Close releases backend resources in reverse order of acquisition.
func (d *Dependencies) Close() {
	if d == nil {
		return
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}
