package config

import (
	"os"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr string
	LogLevel string

	DBDriver string
	DBDSN    string

	JWTSecret string
	TokenTTL  time.Duration

	// StrictRoles rejects tokens whose subject no longer exists instead of
	// trusting the role baked into the claim.
	StrictRoles bool

	AllowedOrigins []string

	// StatsBackend picks where option-pick counters live: "sql" or "redis".
	StatsBackend  string
	RedisAddr     string
	RedisPassword string

	AssetsDir      string
	MaxUploadBytes int64

	// SaveDebounce is how long note and highlight edits coalesce before the
	// row is written.
	SaveDebounce time.Duration

	SessionIdleTTL    time.Duration
	PruneSchedule     string
	ActivityRetention time.Duration

	AdminUser     string
	AdminPassword string
}

func FromEnv() Config {
	return Config{
		HTTPAddr:          envOr("HTTP_ADDR", ":8080"),
		LogLevel:          envOr("LOG_LEVEL", "INFO"),
		DBDriver:          envOr("DB_DRIVER", "sqlite"),
		DBDSN:             envOr("DB_DSN", ""),
		JWTSecret:         envOr("JWT_SECRET", "dev-secret-change-me"),
		TokenTTL:          envDuration("TOKEN_TTL", 8*time.Hour),
		StrictRoles:       envBool("STRICT_ROLES", false),
		AllowedOrigins:    csvOr("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		StatsBackend:      envOr("STATS_BACKEND", "sql"),
		RedisAddr:         envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		AssetsDir:         envOr("ASSETS_DIR", "./data/assets"),
		MaxUploadBytes:    envInt64("MAX_UPLOAD_BYTES", 5<<20),
		SaveDebounce:      envDuration("SAVE_DEBOUNCE", 400*time.Millisecond),
		SessionIdleTTL:    envDuration("SESSION_IDLE_TTL", 2*time.Hour),
		PruneSchedule:     envOr("PRUNE_SCHEDULE", "@every 15m"),
		ActivityRetention: envDuration("ACTIVITY_RETENTION", 90*24*time.Hour),
		AdminUser:         envOr("ADMIN_USER", "admin"),
		AdminPassword:     os.Getenv("ADMIN_PASSWORD"),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func envInt64(k string, def int64) int64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	var n int64
	for _, c := range v {
		if c < '0' || c > '9' {
			return def
		}
		n = n*10 + int64(c-'0')
	}
	return n
}

func envDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func csvOr(k, def string) []string {
	parts := strings.Split(envOr(k, def), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
