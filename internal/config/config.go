package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	NotifierRedis   = "redis"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Document store
	StoreBackend  string
	Notifier      string
	NotifyChannel string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Sessions
	JWTSecret     string
	SessionExpiry time.Duration

	// Server
	Port        string
	CORSOrigins string

	// Observability
	SentryDSN    string
	AppEnv       string
	LogRetention time.Duration
}

// Load reads the environment, after merging a .env file from the working directory
// when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "postboard"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		StoreBackend:  getEnv("STORE_BACKEND", BackendPostgres),
		Notifier:      getEnv("NOTIFIER", BackendPostgres),
		NotifyChannel: getEnv("NOTIFY_CHANNEL", "document_changes"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		SessionExpiry: parseDuration(getEnv("SESSION_EXPIRY", "168h"), 168*time.Hour),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),

		SentryDSN:    getEnv("SENTRY_DSN", ""),
		AppEnv:       getEnv("APP_ENV", "development"),
		LogRetention: parseDuration(getEnv("LOG_RETENTION", "720h"), 30*24*time.Hour),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DBPassword == "" {
			return errors.New("DB_PASSWORD is required for the postgres store backend")
		}
		if c.Notifier != BackendPostgres && c.Notifier != NotifierRedis {
			return fmt.Errorf("unknown NOTIFIER %q", c.Notifier)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	return nil
}

// UsesDatabase reports whether documents and accounts live in Postgres.
func (c *Config) UsesDatabase() bool {
	return c.StoreBackend == BackendPostgres
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

// ListenerDSN is the URL form lib/pq expects for LISTEN connections.
func (c *Config) ListenerDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     net.JoinHostPort(c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return n
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
