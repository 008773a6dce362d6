package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/config"
)

func TestLoadRequiresSalesBackend(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{
		"SALES_API_BASE_URL": "",
		"REDIS_URL":          "redis://localhost:6379/0",
	})
	require.ErrorContains(t, err, "SALES_API_BASE_URL")
}

func TestLoadRequiresRedis(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{
		"SALES_API_BASE_URL": "http://localhost:9000/api",
		"REDIS_URL":          "",
	})
	require.ErrorContains(t, err, "REDIS_URL")
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"SALES_API_BASE_URL": "http://localhost:9000/api/",
		"REDIS_URL":          "redis://localhost:6379/0",
		"DATABASE_URL":       "",
		"PORT":               "",
		"SESSION_TTL":        "",
	})
	require.NoError(t, err)
	require.Equal(t, "http://localhost:9000/api", cfg.SalesAPIBaseURL, "trailing slash is trimmed")
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, 4*time.Hour, cfg.SessionTTL)
	require.Equal(t, 10*time.Second, cfg.SalesAPITimeout)
	require.Equal(t, "120-M", cfg.RateLimit)
	require.Empty(t, cfg.DatabaseURL)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"SALES_API_BASE_URL": "http://backend:9000/api",
		"REDIS_URL":          "redis://redis:6379/1",
		"SESSION_TTL":        "30m",
		"SALES_API_TIMEOUT":  "3s",
		"PORT":               "9090",
		"GUEST_CUSTOMER_ID":  "guest-1",
	})
	require.NoError(t, err)
	require.Equal(t, 30*time.Minute, cfg.SessionTTL)
	require.Equal(t, 3*time.Second, cfg.SalesAPITimeout)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, "guest-1", cfg.GuestCustomerRef)
}
