package config

import (
	"testing"
	"time"
)

func TestLoadAPIConfigDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("SESSION_TTL_HOURS", "168")
	cfg := LoadAPIConfig()

	if cfg.SessionTTL != 7*24*time.Hour {
		t.Fatalf("expected 7 day session ttl, got %s", cfg.SessionTTL)
	}
	if cfg.SessionCookieName != "session" {
		t.Fatalf("unexpected cookie name %q", cfg.SessionCookieName)
	}
	if cfg.SessionCookieSecure {
		t.Fatalf("expected insecure cookie outside production")
	}
	if cfg.StoreTimeout != 3*time.Second {
		t.Fatalf("unexpected store timeout %s", cfg.StoreTimeout)
	}
}

func TestLoadAPIConfigProductionSecuresCookie(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	cfg := LoadAPIConfig()
	if !cfg.IsProduction() {
		t.Fatalf("expected production config")
	}
	if !cfg.SessionCookieSecure {
		t.Fatalf("expected secure cookie in production")
	}

	t.Setenv("SESSION_COOKIE_SECURE", "false")
	if LoadAPIConfig().SessionCookieSecure {
		t.Fatalf("expected explicit override to win")
	}
}

func TestGetIntFallsBackOnInvalidValue(t *testing.T) {
	t.Setenv("CAREBASE_TEST_INT", "not-a-number")
	if got := GetInt("CAREBASE_TEST_INT", 7); got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}
	if got := GetDuration("CAREBASE_TEST_MISSING", 2, time.Minute); got != 2*time.Minute {
		t.Fatalf("unexpected duration %s", got)
	}
}
