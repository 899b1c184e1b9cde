package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"STORE_BACKEND":       "",
		"LOW_STOCK_THRESHOLD": "",
		"LOCK_TTL":            "",
		"PORT":                "",
	})
	require.NoError(t, err)
	require.Equal(t, BackendMemory, cfg.StoreBackend)
	require.Equal(t, 5, cfg.LowStockThreshold)
	require.Equal(t, 10, cfg.LowStockReportThreshold)
	require.Equal(t, 30*time.Second, cfg.LockTTL)
	require.Equal(t, ":8080", cfg.HTTPAddr())
}

func TestLoadRedisRequiresURL(t *testing.T) {
	_, err := LoadForTests(map[string]string{"STORE_BACKEND": "redis", "REDIS_URL": ""})
	require.ErrorContains(t, err, "REDIS_URL")

	cfg, err := LoadForTests(map[string]string{"STORE_BACKEND": "Redis", "REDIS_URL": "redis://localhost:6379/0", "REDIS_PREFIX": "shop"})
	require.NoError(t, err)
	require.Equal(t, BackendRedis, cfg.StoreBackend)
	require.Equal(t, "shop", cfg.RedisPrefix)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"STORE_BACKEND":                  "memory",
		"LOW_STOCK_THRESHOLD":            "3",
		"SHIPPING_BREAKER_FAILURE_RATIO": "0.25",
		"SHIPPING_BREAKER_OPEN_FOR":      "1m",
		"CORS_ALLOWED_ORIGINS":           "https://a.test, https://b.test",
		"LOCK_TTL":                       "not-a-duration",
	})
	require.NoError(t, err)
	require.Equal(t, 3, cfg.LowStockThreshold)
	require.Equal(t, 0.25, cfg.ShippingBreakerFailureRatio)
	require.Equal(t, time.Minute, cfg.ShippingBreakerOpenFor)
	require.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORSAllowedOrigins)
	require.Equal(t, 30*time.Second, cfg.LockTTL)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	_, err := LoadForTests(map[string]string{"STORE_BACKEND": "postgres"})
	require.ErrorContains(t, err, "STORE_BACKEND")
}
