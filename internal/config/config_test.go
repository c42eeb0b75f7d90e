package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wikid82/bookingshield/internal/models"
	"github.com/Wikid82/bookingshield/internal/ratelimit"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	dir := chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, filepath.Join("data", "bookingshield.db"), cfg.DatabasePath)
	assert.Equal(t, StoreSQLite, cfg.Store.Backend)
	assert.Equal(t, FailOpen, cfg.Security.FailurePolicy)
	assert.Equal(t, time.Hour, cfg.Security.TokenTTL)
	assert.Equal(t, models.SeverityHigh, cfg.Alerts.MinSeverity)
	assert.Equal(t, 10, cfg.Alerts.PerMinute)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "@every 1m", cfg.Metrics.GaugeSchedule)
	assert.Len(t, cfg.Endpoints, 5)
	assert.DirExists(t, filepath.Join(dir, "data"))
}

func TestLoad_Overrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SHIELD_ENV", "production")
	t.Setenv("SHIELD_HTTP_PORT", "9090")
	t.Setenv("SHIELD_DB_PATH", filepath.Join(dir, "nested", "shield.db"))
	t.Setenv("SHIELD_STORE", "REDIS")
	t.Setenv("SHIELD_REDIS_ADDR", "redis:6380")
	t.Setenv("SHIELD_REDIS_DB", "2")
	t.Setenv("SHIELD_FAILURE_POLICY", "fail_closed")
	t.Setenv("SHIELD_ALERT_URLS", "generic://a.example, ,generic://b.example")
	t.Setenv("SHIELD_ALERT_MIN_SEVERITY", "Medium")
	t.Setenv("SHIELD_METRICS_ENABLED", "false")
	t.Setenv("SHIELD_TOKEN_TTL_MINUTES", "15")
	t.Setenv("SHIELD_RATELIMIT_BOOKING_CREATION", "10:30:60:none")
	t.Setenv("SHIELD_RATELIMIT_EXTRA", "gift_card=4:60:120:2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, StoreRedis, cfg.Store.Backend)
	assert.Equal(t, "redis:6380", cfg.Store.Redis.Addr)
	assert.Equal(t, 2, cfg.Store.Redis.DB)
	assert.Equal(t, FailClosed, cfg.Security.FailurePolicy)
	assert.Equal(t, []string{"generic://a.example", "generic://b.example"}, cfg.Alerts.URLs)
	assert.Equal(t, models.SeverityMedium, cfg.Alerts.MinSeverity)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Security.TokenTTL)
	assert.DirExists(t, filepath.Join(dir, "nested"))

	booking, ok := cfg.Endpoint(EndpointBookingCreation)
	require.True(t, ok)
	assert.Equal(t, 10, booking.MaxRequests)
	assert.Nil(t, booking.CaptchaThreshold)

	gift, ok := cfg.Endpoint("gift_card")
	require.True(t, ok)
	assert.Equal(t, 120, gift.BlockDurationSeconds)
	require.NotNil(t, gift.CaptchaThreshold)
	assert.Equal(t, 2, *gift.CaptchaThreshold)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"SHIELD_FAILURE_POLICY":            "ignore",
		"SHIELD_STORE":                     "memcached",
		"SHIELD_ALERT_MIN_SEVERITY":        "critical",
		"SHIELD_ALERT_PER_MINUTE":          "0",
		"SHIELD_TOKEN_TTL_MINUTES":         "0",
		"SHIELD_DEBUG":                     "maybe",
		"SHIELD_REDIS_DB":                  "one",
		"SHIELD_RATELIMIT_CONTACT_FORM":    "3:600",
		"SHIELD_RATELIMIT_EXTRA":           "missing-equals",
		"SHIELD_RATELIMIT_ADMIN_LOGIN":     "0:60:60",
		"SHIELD_RATELIMIT_WAITLIST_SIGNUP": "3:300:600:0",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			chdirTemp(t)
			t.Setenv(key, val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_AdminKeyRequiresSecret(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SHIELD_ADMIN_KEY_HASH", "$2a$10$abcdefghijklmnopqrstuv")

	_, err := Load()
	assert.ErrorContains(t, err, "SHIELD_JWT_SECRET")

	t.Setenv("SHIELD_JWT_SECRET", "s3cret")
	_, err = Load()
	assert.NoError(t, err)
}

func TestValidate_EndpointNameMismatch(t *testing.T) {
	cfg := Config{
		Store:    StoreConfig{Backend: StoreSQLite},
		Security: SecurityConfig{FailurePolicy: FailOpen, TokenTTL: time.Minute},
		Alerts:   AlertConfig{MinSeverity: models.SeverityHigh, PerMinute: 1},
		Endpoints: map[string]ratelimit.Config{
			"booking_creation": {Endpoint: "contact_form", MaxRequests: 1, WindowSeconds: 1, BlockDurationSeconds: 1},
		},
	}
	assert.ErrorIs(t, cfg.Validate(), ratelimit.ErrInvalidConfig)
}

func TestParseEndpointSpec(t *testing.T) {
	ep, err := ParseEndpointSpec("booking_creation", " 5:60:300:3 ")
	require.NoError(t, err)
	assert.Equal(t, ratelimit.Config{
		Endpoint:             "booking_creation",
		MaxRequests:          5,
		WindowSeconds:        60,
		BlockDurationSeconds: 300,
		CaptchaThreshold:     ratelimit.Threshold(3),
	}, ep)

	ep, err = ParseEndpointSpec("availability_lookup", "60:60:120")
	require.NoError(t, err)
	assert.Nil(t, ep.CaptchaThreshold)

	for _, bad := range []string{"", "5", "5:60", "a:60:300", "5:60:300:x", "5:60:300:3:1", "5:0:300"} {
		_, err := ParseEndpointSpec("x", bad)
		assert.Error(t, err, bad)
	}
}

func TestDefaultEndpoints_Valid(t *testing.T) {
	for name, ep := range DefaultEndpoints() {
		assert.Equal(t, name, ep.Endpoint)
		assert.NoError(t, ep.Validate(), name)
	}
	booking := DefaultEndpoints()[EndpointBookingCreation]
	assert.Equal(t, 5, booking.MaxRequests)
	assert.Equal(t, 60, booking.WindowSeconds)
	assert.Equal(t, 300, booking.BlockDurationSeconds)
}
