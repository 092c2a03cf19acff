package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/ulule/limiter/v3"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	BackendBaseURL     string
	BackendToken       string
	BackendTimeout     time.Duration
	BackendMaxAttempts int
	RedisURL           string
	DatabaseURL        string
	CORSAllowedOrigins []string
	ProfileCacheTTL    time.Duration
	InvoiceRateLimit   limiter.Rate
	Notify             NotifyConfig
	Obs                ObsConfig
}

// NotifyConfig controls bill emails.
type NotifyConfig struct {
	EmailEnabled      bool
	EmailFrom         string
	ResendAPIKey      string
	WorkerConcurrency int
}

// ObsConfig controls logging, metrics and tracing.
type ObsConfig struct {
	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	MetricsBuckets   string
	EnablePrometheus bool
	EnableTracing    bool
	OTLPEndpoint     string
	TracingExporter  string
	SamplingRatio    float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	rate, err := limiter.NewRateFromFormatted(valueOrDefault(k.String("INVOICE_RATE_LIMIT"), "30-M"))
	if err != nil {
		return nil, fmt.Errorf("INVOICE_RATE_LIMIT: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		BackendBaseURL:     strings.TrimSpace(k.String("BACKEND_BASE_URL")),
		BackendToken:       strings.TrimSpace(k.String("BACKEND_TOKEN")),
		BackendTimeout:     parseDuration(k.String("BACKEND_TIMEOUT"), "5s"),
		BackendMaxAttempts: parseInt(k.String("BACKEND_MAX_ATTEMPTS"), 3),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		ProfileCacheTTL:    parseDuration(k.String("PROFILE_CACHE_TTL"), "10m"),
		InvoiceRateLimit:   rate,
		Notify: NotifyConfig{
			EmailEnabled:      parseBool(k.String("NOTIFY_EMAIL_ENABLED"), false),
			EmailFrom:         valueOrDefault(k.String("NOTIFY_EMAIL_FROM"), "billing@example.com"),
			ResendAPIKey:      strings.TrimSpace(k.String("RESEND_API_KEY")),
			WorkerConcurrency: parseInt(k.String("WORKER_CONCURRENCY"), 5),
		},
		Obs: ObsConfig{
			LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "billing"),
			MetricsBuckets:   k.String("OBS_METRICS_BUCKETS_MS"),
			EnablePrometheus: parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
			EnableTracing:    parseBool(k.String("OBS_ENABLE_TRACING"), false),
			OTLPEndpoint:     strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			SamplingRatio:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),
		},
	}

	if cfg.BackendBaseURL == "" {
		return nil, errors.New("BACKEND_BASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.BackendMaxAttempts < 1 {
		cfg.BackendMaxAttempts = 1
	}
	if cfg.Notify.WorkerConcurrency < 1 {
		cfg.Notify.WorkerConcurrency = 1
	}
	if cfg.Notify.EmailEnabled && cfg.Notify.ResendAPIKey == "" {
		return nil, errors.New("RESEND_API_KEY is required when NOTIFY_EMAIL_ENABLED is set")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// AuditEnabled reports whether bill changes are written to Postgres.
func (c *Config) AuditEnabled() bool {
	return c.DatabaseURL != ""
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}

func parseFloat(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
