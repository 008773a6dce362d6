package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	LogLevel           string
	LogFormat          string
	RedisURL           string
	DatabaseURL        string
	SalesAPIBaseURL    string
	SalesAPIToken      string
	SalesAPITimeout    time.Duration
	SalesAPIRetryMax   int
	SalesAPIBackoff    time.Duration
	SessionTTL         time.Duration
	StockCacheTTL      time.Duration
	GuestCustomerRef   string
	CORSAllowedOrigins []string
	RateLimit          string
	MetricsBucketsCSV  string
	TracingEnabled     bool
	TracingEndpoint    string
	TracingSampling    float64
	PprofEnabled       bool
	PprofUser          string
	PprofPassword      string
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
		LogLevel:           valueOrDefault(k.String("LOG_LEVEL"), "info"),
		LogFormat:          valueOrDefault(k.String("LOG_FORMAT"), "json"),
		RedisURL:           k.String("REDIS_URL"),
		DatabaseURL:        k.String("DATABASE_URL"),
		SalesAPIBaseURL:    strings.TrimRight(strings.TrimSpace(k.String("SALES_API_BASE_URL")), "/"),
		SalesAPIToken:      k.String("SALES_API_TOKEN"),
		SalesAPITimeout:    parseDuration(k.String("SALES_API_TIMEOUT"), "10s"),
		SalesAPIRetryMax:   k.Int("SALES_API_RETRY_MAX"),
		SalesAPIBackoff:    parseDuration(k.String("SALES_API_RETRY_BACKOFF"), "200ms"),
		SessionTTL:         parseDuration(k.String("SESSION_TTL"), "4h"),
		StockCacheTTL:      parseDuration(k.String("STOCK_CACHE_TTL"), "5m"),
		GuestCustomerRef:   k.String("GUEST_CUSTOMER_ID"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		RateLimit:          valueOrDefault(k.String("RATE_LIMIT"), "120-M"),
		MetricsBucketsCSV:  k.String("METRICS_BUCKETS_MS"),
		TracingEnabled:     parseBool(k.String("TRACING_ENABLED")),
		TracingEndpoint:    k.String("TRACING_ENDPOINT"),
		TracingSampling:    k.Float64("TRACING_SAMPLING_RATIO"),
		PprofEnabled:       parseBool(k.String("PPROF_ENABLED")),
		PprofUser:          k.String("PPROF_USER"),
		PprofPassword:      k.String("PPROF_PASSWORD"),
	}

	if cfg.SalesAPIBaseURL == "" {
		return nil, errors.New("SALES_API_BASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
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
