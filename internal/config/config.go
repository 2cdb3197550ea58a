package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
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
	CORSAllowedOrigins []string

	BackendBaseURL      string
	BackendTimeout      time.Duration
	BackendMaxAttempts  int
	BackendRetryBase    time.Duration
	BackendRetryJitter  float64
	BreakerMinRequests  int
	BreakerFailureRatio float64
	BreakerOpenFor      time.Duration

	RedisURL       string
	ReportCacheTTL time.Duration

	ReportTimezone      *time.Location
	ReportDefaultPeriod string
	CurrencySymbol      string
	DisplayLocale       string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	SessionTTL        time.Duration
	SessionsPerDealer int
	ExportRateLimit   int
	ExportRateWindow  time.Duration
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
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		BackendBaseURL:      strings.TrimSpace(k.String("BACKEND_BASE_URL")),
		BackendTimeout:      parseDuration(k.String("BACKEND_TIMEOUT"), "10s"),
		BackendMaxAttempts:  parseInt(k.String("BACKEND_MAX_ATTEMPTS"), 3),
		BackendRetryBase:    parseDuration(k.String("BACKEND_RETRY_BASE"), "200ms"),
		BackendRetryJitter:  parseFloat(k.String("BACKEND_RETRY_JITTER"), 0.2),
		BreakerMinRequests:  parseInt(k.String("BREAKER_MIN_REQUESTS"), 5),
		BreakerFailureRatio: parseFloat(k.String("BREAKER_FAILURE_RATIO"), 0.5),
		BreakerOpenFor:      parseDuration(k.String("BREAKER_OPEN_FOR"), "30s"),

		RedisURL:       strings.TrimSpace(k.String("REDIS_URL")),
		ReportCacheTTL: parseDuration(k.String("REPORT_CACHE_TTL"), "60s"),

		ReportDefaultPeriod: strings.ToLower(valueOrDefault(k.String("REPORT_DEFAULT_PERIOD"), "quarter")),
		CurrencySymbol:      valueOrDefault(k.String("CURRENCY_SYMBOL"), "₹"),
		DisplayLocale:       valueOrDefault(k.String("DISPLAY_LOCALE"), "en-IN"),

		JWTSecret:   strings.TrimSpace(k.String("JWT_SECRET")),
		JWTIssuer:   strings.TrimSpace(k.String("JWT_ISSUER")),
		JWTAudience: strings.TrimSpace(k.String("JWT_AUDIENCE")),

		SessionTTL:        parseDuration(k.String("SESSION_TTL"), "30m"),
		SessionsPerDealer: parseInt(k.String("SESSIONS_PER_DEALER"), 16),
		ExportRateLimit:   parseInt(k.String("EXPORT_RATE_LIMIT"), 30),
		ExportRateWindow:  parseDuration(k.String("EXPORT_RATE_WINDOW"), "1m"),
	}

	loc, err := time.LoadLocation(valueOrDefault(k.String("REPORT_TIMEZONE"), "Asia/Kolkata"))
	if err != nil {
		return nil, fmt.Errorf("REPORT_TIMEZONE: %w", err)
	}
	cfg.ReportTimezone = loc

	if cfg.BackendBaseURL == "" {
		return nil, errors.New("BACKEND_BASE_URL is required")
	}
	if u, err := url.Parse(cfg.BackendBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("BACKEND_BASE_URL is not an absolute url: %q", cfg.BackendBaseURL)
	}
	if cfg.BackendMaxAttempts < 1 {
		cfg.BackendMaxAttempts = 1
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
		return strings.TrimSpace(value)
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
	if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return n
	}
	return fallback
}

func parseFloat(value string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
		return f
	}
	return fallback
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
