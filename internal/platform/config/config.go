package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration assembled from the environment.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	DBPath    string
	JWTSecret string

	CacheBackend           string // "memory" or "redis"
	RedisAddr              string
	RedisPassword          string
	RedisDB                int
	CatalogCacheTTLMinutes int

	ReconcileInterval time.Duration
	ArchiveInterval   time.Duration
	ArchiveAfterDays  int

	// AdminUsername, when set, seeds an admin account on startup if the
	// database has none.
	AdminUsername string
	AdminEmail    string

	UploadsURLPrefix   string
	CORSAllowedOrigins []string
	PollRateLimit      int

	ShutdownTimeout time.Duration
}

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// FromEnv builds a Config from environment variables, applying defaults.
func FromEnv() Config {
	return Config{
		Port:      GetEnv("PORT", "8080"),
		LogLevel:  GetEnv("LOG_LEVEL", "info"),
		LogFormat: GetEnv("LOG_FORMAT", "json"),

		DBPath:    GetEnv("DB_PATH", "media_queue.db"),
		JWTSecret: GetEnv("JWT_SECRET", ""),

		CacheBackend:           strings.ToLower(GetEnv("CACHE_BACKEND", "memory")),
		RedisAddr:              GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:          GetEnv("REDIS_PASSWORD", ""),
		RedisDB:                GetEnvInt("REDIS_DB", 0),
		CatalogCacheTTLMinutes: GetEnvInt("CATALOG_CACHE_TTL_MINUTES", 5),

		ReconcileInterval: GetEnvDuration("RECONCILE_INTERVAL", 30*time.Second),
		ArchiveInterval:   GetEnvDuration("ARCHIVE_INTERVAL", 24*time.Hour),
		ArchiveAfterDays:  GetEnvInt("ARCHIVE_AFTER_DAYS", 0),

		AdminUsername: GetEnv("ADMIN_USERNAME", ""),
		AdminEmail:    GetEnv("ADMIN_EMAIL", ""),

		UploadsURLPrefix:   GetEnv("UPLOADS_URL_PREFIX", "/uploads/"),
		CORSAllowedOrigins: GetEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		PollRateLimit:      GetEnvInt("POLL_RATE_LIMIT", 600),

		ShutdownTimeout: GetEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvBool returns the boolean value of key, or fallback if unset or unparsable.
func GetEnvBool(key string, fallback bool) bool {
	if s := os.Getenv(key); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return fallback
}

// GetEnvDuration parses key with time.ParseDuration ("30s", "24h").
// A bare integer is read as seconds.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}

// GetEnvList splits a comma-separated variable, dropping empty elements.
func GetEnvList(key string, fallback []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
