// apps/go-server/internal/config/config.go
//
// Process configuration, read once at startup.
// Values come from the environment; a .env file in the working directory is
// loaded first when present (development). Every key has a default so the
// server starts with no configuration at all.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds every tunable of the game server.
type Config struct {
	Port      string
	LogLevel  string
	LogPretty bool
	LogFile   string

	ScoreAPIURL     string
	ScoreAPITimeout time.Duration

	JWTSecret      string
	JWTExpiresDays int
	CookieName     string
	Production     bool
	ClientOrigin   string

	SessionTTL     time.Duration
	AuthRatePerMin int

	// DevBackendAddr, when set, starts the local score backend double on
	// that address and points ScoreAPIURL at it unless SCORE_API_URL is set.
	DevBackendAddr string
	DevDBPath      string
}

const devSecret = "dev_secret_change_me"

// Load reads .env (if any) and the environment.
func Load() Config {
	_ = godotenv.Load()

	c := Config{
		Port:      getEnv("PORT", "5175"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: envBool("LOG_PRETTY", false),
		LogFile:   os.Getenv("LOG_FILE"),

		ScoreAPIURL:     os.Getenv("SCORE_API_URL"),
		ScoreAPITimeout: envDuration("SCORE_API_TIMEOUT", 10*time.Second),

		JWTSecret:      getEnv("JWT_SECRET", devSecret),
		JWTExpiresDays: envInt("JWT_EXPIRES_DAYS", 14),
		CookieName:     getEnv("COOKIE_NAME", "mg_session"),
		Production:     os.Getenv("NODE_ENV") == "production",
		ClientOrigin:   getEnv("CLIENT_ORIGIN", "http://localhost:5173"),

		SessionTTL:     envDuration("SESSION_TTL", 30*time.Minute),
		AuthRatePerMin: envInt("AUTH_RATE_PER_MIN", 20),

		DevBackendAddr: os.Getenv("DEV_BACKEND_ADDR"),
		DevDBPath:      getEnv("DEV_DB_PATH", "./data/scores.db"),
	}

	if c.ScoreAPIURL == "" {
		if c.DevBackendAddr != "" {
			c.ScoreAPIURL = "http://" + localAddr(c.DevBackendAddr)
		} else {
			c.ScoreAPIURL = "https://minigames-backend-1.onrender.com"
		}
	}
	if c.Production && c.JWTSecret == devSecret {
		log.Warn().Msg("JWT_SECRET is not set in production")
	}
	return c
}

// localAddr turns a listen address like ":4000" into "localhost:4000".
func localAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warn().Str("key", k).Str("value", v).Msg("ignoring non-integer env value")
	}
	return def
}

func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Warn().Str("key", k).Str("value", v).Msg("ignoring invalid duration")
	}
	return def
}
