package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/erp-billing/internal/app"
	"github.com/noah-isme/erp-billing/internal/backend"
	"github.com/noah-isme/erp-billing/internal/common"
	"github.com/noah-isme/erp-billing/internal/config"
	"github.com/noah-isme/erp-billing/internal/notify"
	"github.com/noah-isme/erp-billing/internal/obs"
	"github.com/noah-isme/erp-billing/internal/profile"
	"github.com/noah-isme/erp-billing/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := app.NewRedis(ctx, cfg.RedisURL, false, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	backendClient, err := backend.New(backend.Config{
		BaseURL:     cfg.BackendBaseURL,
		Token:       cfg.BackendToken,
		Timeout:     cfg.BackendTimeout,
		MaxAttempts: cfg.BackendMaxAttempts,
		Breaker:     resilience.NewBreaker(resilience.BreakerConfig{Target: "backend", Logger: logger}),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise backend client")
	}

	var mail common.EmailSender = common.NopEmailSender{}
	if cfg.Notify.EmailEnabled {
		mail = notify.NewResendSender(cfg.Notify.ResendAPIKey, cfg.Notify.EmailFrom, logger)
	} else {
		logger.Warn().Msg("email delivery disabled; notifications will be dropped")
	}

	handler := &notify.Handler{
		Mail: mail,
		Profiles: &profile.Resolver{
			Source: backendClient,
			Cache:  profile.NewCache(redisClient, cfg.ProfileCacheTTL),
			Logger: logger,
		},
		Replay:    notify.RedisReplayProtector{Client: redisClient},
		ReplayTTL: 24 * time.Hour,
		Logger:    logger,
	}

	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis uri")
	}
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency:     cfg.Notify.WorkerConcurrency,
		Queues:          map[string]int{notify.QueueName: 1},
		Logger:          notify.AsynqLogger{Logger: logger},
		ErrorHandler:    notify.ErrorHandler(logger),
		ShutdownTimeout: 10 * time.Second,
	})

	logger.Info().Int("concurrency", cfg.Notify.WorkerConcurrency).Msg("worker starting")
	if err := srv.Start(notify.NewServeMux(handler)); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}
