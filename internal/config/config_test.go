package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "SCORE_API_URL", "DEV_BACKEND_ADDR", "JWT_EXPIRES_DAYS", "SESSION_TTL", "NODE_ENV", "LOG_PRETTY"} {
		t.Setenv(k, "")
	}
	c := Load()
	if c.Port != "5175" {
		t.Fatalf("expected default port, got %q", c.Port)
	}
	if c.ScoreAPIURL != "https://minigames-backend-1.onrender.com" {
		t.Fatalf("unexpected default backend %q", c.ScoreAPIURL)
	}
	if c.JWTExpiresDays != 14 || c.SessionTTL != 30*time.Minute || c.Production || c.LogPretty {
		t.Fatalf("unexpected defaults %+v", c)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SCORE_API_URL", "")
	t.Setenv("DEV_BACKEND_ADDR", ":4000")
	t.Setenv("JWT_EXPIRES_DAYS", "3")
	t.Setenv("SESSION_TTL", "90s")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("LOG_PRETTY", "true")

	c := Load()
	if c.ScoreAPIURL != "http://localhost:4000" {
		t.Fatalf("expected dev backend url, got %q", c.ScoreAPIURL)
	}
	if c.JWTExpiresDays != 3 || c.SessionTTL != 90*time.Second || !c.Production || !c.LogPretty {
		t.Fatalf("unexpected overrides %+v", c)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("JWT_EXPIRES_DAYS", "two")
	t.Setenv("SESSION_TTL", "soon")
	c := Load()
	if c.JWTExpiresDays != 14 || c.SessionTTL != 30*time.Minute {
		t.Fatalf("expected defaults for invalid values, got %d %v", c.JWTExpiresDays, c.SessionTTL)
	}
}
