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
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	StoreBackend       string
	RedisURL           string
	RedisPrefix        string
	LockTTL            time.Duration
	CORSAllowedOrigins []string
	MaxBodyBytes       int64
	SecurityHeaders    bool
	AuditEnabled       bool

	CheckoutRateLimitMax    int
	CheckoutRateLimitWindow time.Duration

	LowStockThreshold       int
	LowStockReportThreshold int
	LowStockSweepSchedule   string
	ReportCacheTTL          time.Duration
	ReportDefaultRangeDays  int

	ShippingBreakerMinRequests  int
	ShippingBreakerFailureRatio float64
	ShippingBreakerOpenFor      time.Duration

	NotifyEmailEnabled bool
	NotifyEmailFrom    string
	NotifySMSEnabled   bool
	EventHistoryMax    int
	SeedDemo           bool

	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	MetricsEnabled   bool
	TracingEnabled   bool
	TracingExporter  string
	OTLPEndpoint     string
	TracingSampling  float64
	MetricsBuckets   string
	PprofEnabled     bool
	PprofUser        string
	PprofPass        string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		StoreBackend:       strings.ToLower(valueOrDefault(k.String("STORE_BACKEND"), BackendMemory)),
		RedisURL:           k.String("REDIS_URL"),
		RedisPrefix:        valueOrDefault(k.String("REDIS_PREFIX"), "toko"),
		LockTTL:            parseDuration(k.String("LOCK_TTL"), "30s"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		MaxBodyBytes:       int64(parseInt(k.String("HTTP_MAX_BODY_BYTES"), 1<<20)),
		SecurityHeaders:    parseBool(valueOrDefault(k.String("SECURITY_HEADERS_ENABLED"), "true")),
		AuditEnabled:       parseBool(valueOrDefault(k.String("AUDIT_ENABLED"), "true")),

		CheckoutRateLimitMax:    parseInt(k.String("CHECKOUT_RATE_LIMIT_MAX"), 30),
		CheckoutRateLimitWindow: parseDuration(k.String("CHECKOUT_RATE_LIMIT_WINDOW"), "1m"),

		LowStockThreshold:       parseInt(k.String("LOW_STOCK_THRESHOLD"), 5),
		LowStockReportThreshold: parseInt(k.String("LOW_STOCK_REPORT_THRESHOLD"), 10),
		LowStockSweepSchedule:   valueOrDefault(k.String("LOW_STOCK_SWEEP_SCHEDULE"), "@every 15m"),
		ReportCacheTTL:          parseDuration(k.String("REPORT_CACHE_TTL"), "5m"),
		ReportDefaultRangeDays:  parseInt(k.String("REPORT_DEFAULT_RANGE_DAYS"), 30),

		ShippingBreakerMinRequests:  parseInt(k.String("SHIPPING_BREAKER_MIN_REQUESTS"), 5),
		ShippingBreakerFailureRatio: parseFloat(k.String("SHIPPING_BREAKER_FAILURE_RATIO"), 0.5),
		ShippingBreakerOpenFor:      parseDuration(k.String("SHIPPING_BREAKER_OPEN_FOR"), "30s"),

		NotifyEmailEnabled: parseBool(valueOrDefault(k.String("NOTIFY_EMAIL_ENABLED"), "true")),
		NotifyEmailFrom:    valueOrDefault(k.String("NOTIFY_EMAIL_FROM"), "orders@toko.local"),
		NotifySMSEnabled:   parseBool(k.String("NOTIFY_SMS_ENABLED")),
		EventHistoryMax:    parseInt(k.String("EVENT_HISTORY_MAX"), 1000),
		SeedDemo:           parseBool(k.String("SEED_DEMO")),

		LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "toko"),
		MetricsEnabled:   parseBool(valueOrDefault(k.String("OBS_ENABLE_PROMETHEUS"), "true")),
		TracingEnabled:   parseBool(k.String("OBS_ENABLE_TRACING")),
		TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
		OTLPEndpoint:     k.String("OBS_OTLP_ENDPOINT"),
		TracingSampling:  parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
		MetricsBuckets:   k.String("OBS_METRICS_BUCKETS_MS"),
		PprofEnabled:     parseBool(k.String("OBS_ENABLE_PPROF")),
		PprofUser:        k.String("SECURE_PPROF_BASIC_AUTH_USER"),
		PprofPass:        k.String("SECURE_PPROF_BASIC_AUTH_PASS"),
	}

	switch cfg.StoreBackend {
	case BackendMemory:
	case BackendRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("REDIS_URL is required when STORE_BACKEND=redis")
		}
	default:
		return nil, fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendMemory, BackendRedis, cfg.StoreBackend)
	}
	if cfg.LowStockThreshold <= 0 {
		return nil, errors.New("LOW_STOCK_THRESHOLD must be positive")
	}
	if cfg.ShippingBreakerFailureRatio <= 0 || cfg.ShippingBreakerFailureRatio > 1 {
		return nil, errors.New("SHIPPING_BREAKER_FAILURE_RATIO must be in (0, 1]")
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
	if strings.TrimSpace(value) != "" {
		return value
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

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
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
