package config

import (
	"strings"
	"time"
)

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment   string
	Addr          string
	LogLevel      string
	StoreDriver   string
	DatabaseURL   string
	MigrationsDir string
	StoreTimeout  time.Duration
	BootstrapWait time.Duration

	SessionTTL          time.Duration
	SessionCookieName   string
	SessionCookieSecure bool
	GuestIsolation      bool

	InternalServiceSecret string
	InternalTokenTTL      time.Duration

	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int

	NotifyRedisAddr string
	NotifyRedisPass string
	NotifyRedisDB   int
	NotifyChannel   string

	NewsFeedURL        string
	NewsFeedAPIKey     string
	NewsInterval       time.Duration
	MedicationInterval time.Duration
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	LoadDotEnv()
	env := GetString("APP_ENV", "development")
	return APIConfig{
		Environment:   env,
		Addr:          GetString("API_ADDR", ":4000"),
		LogLevel:      GetString("LOG_LEVEL", "info"),
		StoreDriver:   GetString("STORE_DRIVER", "postgres"),
		DatabaseURL:   GetString("DATABASE_URL", "postgres://carebase:carebase@db:5432/carebase?sslmode=disable"),
		MigrationsDir: GetString("MIGRATIONS_DIR", ""),
		StoreTimeout:  GetDuration("STORE_OP_TIMEOUT_MS", 3000, time.Millisecond),
		BootstrapWait: GetDuration("BOOTSTRAP_TIMEOUT_SECONDS", 30, time.Second),

		SessionTTL:          GetDuration("SESSION_TTL_HOURS", 7*24, time.Hour),
		SessionCookieName:   GetString("SESSION_COOKIE_NAME", "session"),
		SessionCookieSecure: GetBool("SESSION_COOKIE_SECURE", strings.EqualFold(env, "production")),
		GuestIsolation:      GetBool("GUEST_ISOLATION", false),

		InternalServiceSecret: GetString("INTERNAL_SERVICE_SECRET", ""),
		InternalTokenTTL:      GetDuration("INTERNAL_TOKEN_TTL_MIN", 60, time.Minute),

		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),

		NotifyRedisAddr: GetString("NOTIFY_REDIS_ADDR", ""),
		NotifyRedisPass: GetString("NOTIFY_REDIS_PASSWORD", ""),
		NotifyRedisDB:   GetInt("NOTIFY_REDIS_DB", 0),
		NotifyChannel:   GetString("NOTIFY_CHANNEL", "carebase:notifications"),

		NewsFeedURL:        GetString("NEWS_FEED_URL", ""),
		NewsFeedAPIKey:     GetString("NEWS_FEED_API_KEY", ""),
		NewsInterval:       GetDuration("NEWS_INTERVAL_MINUTES", 60, time.Minute),
		MedicationInterval: GetDuration("MEDICATION_INTERVAL_SECONDS", 60, time.Second),
	}
}

// IsProduction reports whether the service runs with production defaults.
func (c APIConfig) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}
