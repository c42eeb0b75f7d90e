package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Wikid82/bookingshield/internal/models"
	"github.com/Wikid82/bookingshield/internal/ratelimit"
)

// FailurePolicy decides what happens to a request when the rate limit store
// cannot be reached.
type FailurePolicy string

const (
	// FailOpen admits the request with a degraded result. This is the default
	// so a store outage does not take every booking page down with it.
	FailOpen FailurePolicy = "fail_open"
	// FailClosed rejects the request with 503.
	FailClosed FailurePolicy = "fail_closed"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Config captures runtime configuration sourced from environment variables.
type Config struct {
	Environment  string
	HTTPPort     string
	DatabasePath string
	LogDir       string
	Debug        bool
	Store        StoreConfig
	Security     SecurityConfig
	Alerts       AlertConfig
	Metrics      MetricsConfig
	// Endpoints maps endpoint names to their limits.
	Endpoints map[string]ratelimit.Config
}

// StoreConfig selects where rate limit counters live. Blocks and security
// events always live in the SQL database.
type StoreConfig struct {
	Backend string
	Redis   RedisConfig
}

// RedisConfig holds connection settings for the Redis counter store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SecurityConfig holds the failure policy and admin authentication settings.
type SecurityConfig struct {
	FailurePolicy FailurePolicy
	JWTSecret     string
	AdminKeyHash  string // bcrypt hash of the admin API key; empty disables the admin API
	TokenTTL      time.Duration
}

// AlertConfig controls forwarding of security events to external services.
type AlertConfig struct {
	URLs        []string
	MinSeverity models.Severity
	PerMinute   int
}

// MetricsConfig controls the Prometheus endpoint and block gauges.
type MetricsConfig struct {
	Enabled       bool
	GaugeSchedule string // cron spec for refreshing block gauges
}

// Load reads env vars (and an optional .env file) and falls back to defaults
// so the service can boot with zero configuration. Invalid endpoint limits are
// returned as errors; callers treat them as fatal.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:  getEnv("SHIELD_ENV", "development"),
		HTTPPort:     getEnv("SHIELD_HTTP_PORT", "8080"),
		DatabasePath: getEnv("SHIELD_DB_PATH", filepath.Join("data", "bookingshield.db")),
		LogDir:       getEnv("SHIELD_LOG_DIR", filepath.Join("data", "logs")),
		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("SHIELD_STORE", StoreSQLite)),
			Redis: RedisConfig{
				Addr:     getEnv("SHIELD_REDIS_ADDR", "localhost:6379"),
				Password: os.Getenv("SHIELD_REDIS_PASSWORD"),
			},
		},
		Security: SecurityConfig{
			FailurePolicy: FailurePolicy(strings.ToLower(getEnv("SHIELD_FAILURE_POLICY", string(FailOpen)))),
			JWTSecret:     os.Getenv("SHIELD_JWT_SECRET"),
			AdminKeyHash:  os.Getenv("SHIELD_ADMIN_KEY_HASH"),
		},
		Alerts: AlertConfig{
			URLs:        splitList(os.Getenv("SHIELD_ALERT_URLS")),
			MinSeverity: models.Severity(strings.ToLower(getEnv("SHIELD_ALERT_MIN_SEVERITY", string(models.SeverityHigh)))),
		},
		Metrics: MetricsConfig{
			GaugeSchedule: getEnv("SHIELD_BLOCK_GAUGE_SCHEDULE", "@every 1m"),
		},
	}

	var err error
	if cfg.Debug, err = getEnvBool("SHIELD_DEBUG", false); err != nil {
		return Config{}, err
	}
	if cfg.Metrics.Enabled, err = getEnvBool("SHIELD_METRICS_ENABLED", true); err != nil {
		return Config{}, err
	}
	if cfg.Store.Redis.DB, err = getEnvInt("SHIELD_REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.Alerts.PerMinute, err = getEnvInt("SHIELD_ALERT_PER_MINUTE", 10); err != nil {
		return Config{}, err
	}
	ttlMinutes, err := getEnvInt("SHIELD_TOKEN_TTL_MINUTES", 60)
	if err != nil {
		return Config{}, err
	}
	cfg.Security.TokenTTL = time.Duration(ttlMinutes) * time.Minute

	if cfg.Endpoints, err = loadEndpoints(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure data directory: %w", err)
	}

	return cfg, nil
}

// Validate checks cross-field settings and every endpoint limit.
func (c Config) Validate() error {
	switch c.Security.FailurePolicy {
	case FailOpen, FailClosed:
	default:
		return fmt.Errorf("invalid SHIELD_FAILURE_POLICY %q: want %s or %s", c.Security.FailurePolicy, FailOpen, FailClosed)
	}
	switch c.Store.Backend {
	case StoreSQLite, StoreRedis:
	default:
		return fmt.Errorf("invalid SHIELD_STORE %q: want %s or %s", c.Store.Backend, StoreSQLite, StoreRedis)
	}
	if c.Alerts.MinSeverity.Rank() == 0 {
		return fmt.Errorf("invalid SHIELD_ALERT_MIN_SEVERITY %q", c.Alerts.MinSeverity)
	}
	if c.Alerts.PerMinute < 1 {
		return fmt.Errorf("SHIELD_ALERT_PER_MINUTE must be >= 1")
	}
	if c.Security.AdminKeyHash != "" && c.Security.JWTSecret == "" {
		return fmt.Errorf("SHIELD_JWT_SECRET is required when SHIELD_ADMIN_KEY_HASH is set")
	}
	if c.Security.TokenTTL <= 0 {
		return fmt.Errorf("SHIELD_TOKEN_TTL_MINUTES must be >= 1")
	}
	for name, ep := range c.Endpoints {
		if ep.Endpoint != name {
			return fmt.Errorf("%w: endpoint %q registered under %q", ratelimit.ErrInvalidConfig, ep.Endpoint, name)
		}
		if err := ep.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Endpoint returns the limits for a named endpoint.
func (c Config) Endpoint(name string) (ratelimit.Config, bool) {
	ep, ok := c.Endpoints[name]
	return ep, ok
}

func getEnv(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}

	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
