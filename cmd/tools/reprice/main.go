package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/noah-isme/erp-billing/internal/app"
	"github.com/noah-isme/erp-billing/internal/backend"
	"github.com/noah-isme/erp-billing/internal/config"
	"github.com/noah-isme/erp-billing/internal/lock"
	"github.com/noah-isme/erp-billing/internal/obs"
	"github.com/noah-isme/erp-billing/internal/reprice"
	"github.com/noah-isme/erp-billing/internal/resilience"
)

const lockKey = "billing:reprice:apply"

func main() {
	var (
		apply       = flag.Bool("apply", false, "write recomputed totals back to the backend")
		pageSize    = flag.Int("page-size", 100, "bills requested per backend page")
		concurrency = flag.Int("concurrency", 8, "bills priced in parallel per page")
		lockTTL     = flag.Duration("lock-ttl", 15*time.Minute, "how long an -apply run holds the exclusive lock")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("component", "reprice").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := backend.New(backend.Config{
		BaseURL:     cfg.BackendBaseURL,
		Token:       cfg.BackendToken,
		Timeout:     cfg.BackendTimeout,
		MaxAttempts: cfg.BackendMaxAttempts,
		Breaker:     resilience.NewBreaker(resilience.BreakerConfig{Target: "backend", Logger: logger}),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise backend client")
	}

	runner := reprice.Runner{
		Store:       client,
		PageSize:    *pageSize,
		Concurrency: *concurrency,
		Apply:       *apply,
		Logger:      logger,
	}

	var report reprice.Report
	run := func(ctx context.Context) error {
		var err error
		report, err = runner.Run(ctx)
		return err
	}

	if *apply {
		rdb, redisErr := app.NewRedis(ctx, cfg.RedisURL, false, logger)
		if redisErr != nil {
			logger.Fatal().Err(redisErr).Msg("connect redis")
		}
		defer func() { _ = rdb.Close() }()
		err = lock.Locker{Client: rdb}.WithLock(ctx, lockKey, *lockTTL, run)
		if errors.Is(err, lock.ErrHeld) {
			logger.Fatal().Msg("another reprice -apply run is in progress")
		}
	} else {
		err = run(ctx)
	}
	if err != nil {
		logger.Error().Err(err).Int("scanned", report.Scanned).Msg("reprice stopped")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(report); encErr != nil {
		logger.Error().Err(encErr).Msg("write report")
	}
	logger.Info().
		Int("pages", report.Pages).
		Int("scanned", report.Scanned).
		Int("drifted", len(report.Drifted)).
		Int("applied", report.Applied).
		Int("failed", report.Failed).
		Msg("reprice complete")
	if err != nil || report.Failed > 0 {
		stop()
		os.Exit(1)
	}
}
