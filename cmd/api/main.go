package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/erp-billing/internal/app"
	"github.com/noah-isme/erp-billing/internal/audit"
	"github.com/noah-isme/erp-billing/internal/backend"
	"github.com/noah-isme/erp-billing/internal/bill"
	"github.com/noah-isme/erp-billing/internal/config"
	"github.com/noah-isme/erp-billing/internal/health"
	"github.com/noah-isme/erp-billing/internal/invoice"
	"github.com/noah-isme/erp-billing/internal/notify"
	"github.com/noah-isme/erp-billing/internal/obs"
	"github.com/noah-isme/erp-billing/internal/profile"
	"github.com/noah-isme/erp-billing/internal/ratelimit"
	"github.com/noah-isme/erp-billing/internal/resilience"
	"github.com/noah-isme/erp-billing/internal/security"
)

const serviceName = "erp-billing"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	var reg prometheus.Registerer
	if cfg.Obs.EnablePrometheus {
		reg = prometheus.DefaultRegisterer
	}
	var (
		httpMetrics    *obs.HTTPMetrics
		billingMetrics *obs.BillingMetrics
		breakerMetrics *resilience.Metrics
	)
	if reg != nil {
		ns := cfg.Obs.MetricsNamespace
		httpMetrics = obs.NewHTTPMetrics(ns, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), reg)
		billingMetrics = obs.NewBillingMetrics(ns, reg)
		breakerMetrics = resilience.NewMetrics(ns, reg)
	}

	shutdownTracer, err := obs.InitTracer(context.Background(), obs.TracingConfig{
		Enabled:       cfg.Obs.EnableTracing,
		ServiceName:   serviceName,
		Endpoint:      cfg.Obs.OTLPEndpoint,
		Exporter:      cfg.Obs.TracingExporter,
		SamplingRatio: cfg.Obs.SamplingRatio,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracer(ctx); err != nil {
				logger.Error().Err(err).Msg("shutdown tracer")
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	deps, err := app.Build(ctx, cfg, serviceName, logger)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("close dependencies")
		}
	}()

	backendClient, err := backend.New(backend.Config{
		BaseURL:     cfg.BackendBaseURL,
		Token:       cfg.BackendToken,
		Timeout:     cfg.BackendTimeout,
		MaxAttempts: cfg.BackendMaxAttempts,
		Metrics:     breakerMetrics,
		Breaker: resilience.NewBreaker(resilience.BreakerConfig{
			Target:  "backend",
			Logger:  logger,
			Metrics: breakerMetrics,
		}),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise backend client")
	}

	resolver := &profile.Resolver{
		Source: backendClient,
		Cache:  profile.NewCache(deps.Redis, cfg.ProfileCacheTTL),
		Logger: logger,
	}

	auditService := audit.Service{Enabled: cfg.AuditEnabled(), SamplingRate: 1}
	if deps.DB != nil {
		auditService.Store = audit.PGStore{Pool: deps.DB}
	}

	billService := &bill.Service{
		Store:     backendClient,
		Validator: bill.NewValidator(),
		Audit:     auditService,
		Notifier: notify.Publisher{
			Client:    deps.TaskClient,
			Enabled:   cfg.Notify.EmailEnabled,
			MaxRetry:  5,
			UniqueFor: time.Minute,
			Metrics:   billingMetrics,
		},
		Parties:  resolver,
		Renderer: invoice.PDFRenderer{Title: "Tax Invoice", Compress: true},
		Metrics:  billingMetrics,
		Logger:   logger,
	}

	healthProbes := []health.Probe{
		{Name: "backend", Timeout: 2 * time.Second, Check: backendClient.Ping},
		{Name: "redis", Timeout: time.Second, Check: func(ctx context.Context) error {
			return deps.Redis.Ping(ctx).Err()
		}},
	}
	if deps.DB != nil {
		healthProbes = append(healthProbes, health.Probe{Name: "database", Timeout: time.Second, Check: deps.DB.Ping})
	}

	invoiceLimit := ratelimit.Handler{
		Limiter: limiter.New(deps.LimiterStore, cfg.InvoiceRateLimit),
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("invoice rate limiter unavailable")
		},
	}

	router := newRouter(routerDeps{
		Logger:         logger,
		Security:       securityHeaders(cfg.AppEnv),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		HTTPMetrics:    httpMetrics,
		Metrics:        metricsHandler(cfg.Obs.EnablePrometheus),
		Bills:          bill.NewHandler(billService),
		Audit:          audit.Handler{Service: auditService},
		Health:         health.Handler{Probes: healthProbes},
		LimitInvoice:   invoiceLimit.Middleware,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server stopped")
		}
		return
	case <-sigCtx.Done():
	}

	health.SetReady(false)
	logger.Info().Msg("shutdown requested")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
	logger.Info().Msg("server stopped")
}

func securityHeaders(env string) security.Headers {
	if env == "production" {
		return security.Headers{HSTSMaxAge: 31536000, HSTSIncludeSubdomains: true}
	}
	return security.Headers{}
}
