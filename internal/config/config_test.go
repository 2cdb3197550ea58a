package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dealer-insights/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"BACKEND_BASE_URL":      "http://inventory.local/api/dealer",
		"BACKEND_MAX_ATTEMPTS":  "",
		"REPORT_TIMEZONE":       "",
		"REPORT_DEFAULT_PERIOD": "",
		"REPORT_CACHE_TTL":      "",
		"CORS_ALLOWED_ORIGINS":  "https://a.example, ,https://b.example",
		"PORT":                  "9090",
	})
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, 3, cfg.BackendMaxAttempts)
	require.Equal(t, "quarter", cfg.ReportDefaultPeriod)
	require.Equal(t, time.Minute, cfg.ReportCacheTTL)
	require.Equal(t, "Asia/Kolkata", cfg.ReportTimezone.String())
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadRequiresBackend(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{"BACKEND_BASE_URL": ""})
	require.ErrorContains(t, err, "BACKEND_BASE_URL")

	_, err = config.LoadForTests(map[string]string{"BACKEND_BASE_URL": "inventory.local"})
	require.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"BACKEND_BASE_URL":     "https://inventory.example",
		"BACKEND_TIMEOUT":      "2s",
		"BACKEND_MAX_ATTEMPTS": "0",
		"REPORT_TIMEZONE":      "UTC",
		"SESSION_TTL":          "not-a-duration",
		"EXPORT_RATE_LIMIT":    "5",
		"SESSIONS_PER_DEALER":  "4",
	})
	require.NoError(t, err)
	require.Equal(t, 2*time.Second, cfg.BackendTimeout)
	require.Equal(t, 1, cfg.BackendMaxAttempts)
	require.Equal(t, time.UTC, cfg.ReportTimezone)
	require.Equal(t, 30*time.Minute, cfg.SessionTTL)
	require.Equal(t, 5, cfg.ExportRateLimit)
	require.Equal(t, 4, cfg.SessionsPerDealer)

	_, err = config.LoadForTests(map[string]string{
		"BACKEND_BASE_URL": "https://inventory.example",
		"REPORT_TIMEZONE":  "Mars/Olympus",
	})
	require.ErrorContains(t, err, "REPORT_TIMEZONE")
}
