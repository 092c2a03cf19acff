package app

import (
	"context"
	"errors"
	"fmt"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/erp-billing/internal/audit"
	"github.com/noah-isme/erp-billing/internal/config"
	"github.com/noah-isme/erp-billing/internal/obs"
)

// Dependencies enumerates the shared clients built at startup.
type Dependencies struct {
	Redis        *redis.Client
	DB           *pgxpool.Pool
	LimiterStore limiter.Store
	TaskClient   *asynq.Client
	closers      []func() error
}

// Close releases every client in reverse order of creation.
func (d *Dependencies) Close() error {
	var joined error
	for i := len(d.closers) - 1; i >= 0; i-- {
		joined = errors.Join(joined, d.closers[i]())
	}
	d.closers = nil
	return joined
}

// Build connects Redis, the limiter store, the task client and, when
// DATABASE_URL is set, the audit database with its migrations applied.
func Build(ctx context.Context, cfg *config.Config, appName string, logger zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{}

	rdb, err := NewRedis(ctx, cfg.RedisURL, cfg.Obs.EnablePrometheus, logger)
	if err != nil {
		return nil, err
	}
	deps.Redis = rdb
	deps.closers = append(deps.closers, rdb.Close)

	store, err := NewLimiterStore(rdb)
	if err != nil {
		_ = deps.Close()
		return nil, fmt.Errorf("limiter store: %w", err)
	}
	deps.LimiterStore = store

	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		_ = deps.Close()
		return nil, fmt.Errorf("parse redis uri for tasks: %w", err)
	}
	deps.TaskClient = asynq.NewClient(opt)
	deps.closers = append(deps.closers, deps.TaskClient.Close)

	if cfg.AuditEnabled() {
		m, err := audit.NewMigrator(cfg.DatabaseURL)
		if err != nil {
			_ = deps.Close()
			return nil, err
		}
		err = RunMigrations(m)
		_, _ = m.Close()
		if err != nil {
			_ = deps.Close()
			return nil, fmt.Errorf("audit migrations: %w", err)
		}
		pool, err := NewDBPool(ctx, cfg.DatabaseURL, appName)
		if err != nil {
			_ = deps.Close()
			return nil, err
		}
		deps.DB = pool
		deps.closers = append(deps.closers, func() error { pool.Close(); return nil })
	}
	return deps, nil
}

// NewRedis parses url, instruments the client and checks it answers.
func NewRedis(ctx context.Context, url string, metrics bool, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewDBPool opens a traced pgx pool.
func NewDBPool(ctx context.Context, url, appName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = appName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// NewLimiterStore wires a rate limiter store backed by Redis.
func NewLimiterStore(rdb *redis.Client) (limiter.Store, error) {
	return limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "billing:limiter"})
}

// RunMigrations applies pending migrations.
func RunMigrations(m *migrate.Migrate) error {
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
