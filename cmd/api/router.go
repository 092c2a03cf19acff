package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/erp-billing/internal/audit"
	"github.com/noah-isme/erp-billing/internal/bill"
	"github.com/noah-isme/erp-billing/internal/health"
	"github.com/noah-isme/erp-billing/internal/obs"
	"github.com/noah-isme/erp-billing/internal/security"
)

type routerDeps struct {
	Logger         zerolog.Logger
	Security       security.Headers
	AllowedOrigins []string
	HTTPMetrics    *obs.HTTPMetrics
	Metrics        http.Handler
	Bills          *bill.Handler
	Audit          audit.Handler
	Health         health.Handler
	LimitInvoice   func(http.Handler) http.Handler
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.TracingMiddleware)
	r.Use(obs.HTTPObs{Metrics: d.HTTPMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(d.Security.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(d.AllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Location", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}
	r.Get("/health/live", d.Health.Live)
	r.Get("/health/ready", d.Health.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		d.Bills.Routes(v, d.LimitInvoice)
		v.Get("/bills/{id}/audit", d.Audit.List)
	})
	return r
}

func metricsHandler(enabled bool) http.Handler {
	if !enabled {
		return nil
	}
	return promhttp.Handler()
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
