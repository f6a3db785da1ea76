package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port        string
	Environment string
	LogLevel    string

	// Database
	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int

	// JWT (tokens are issued by the school's auth service; we only verify them)
	JWTSecret string

	// Storage
	StoragePath      string
	BackupSafetyCopy bool

	// Background jobs (an interval of zero disables the job)
	WorkerCount       int
	BackupInterval    time.Duration
	BackupRetention   int
	ReconcileInterval time.Duration

	// CORS
	AllowedOrigins []string

	// Redis (optional, enables idempotency keys on bank transactions)
	RedisURL       string
	IdempotencyTTL time.Duration

	// Sentry
	SentryDSN string
}

// Load reads configuration from the environment and, when CONFIG_FILE is set,
// from that file. Environment variables win over file values.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	cfg := &Config{
		Port:              v.GetString("PORT"),
		Environment:       v.GetString("ENVIRONMENT"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		DatabaseURL:       v.GetString("DATABASE_URL"),
		DBMaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
		DBMaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		StoragePath:       v.GetString("STORAGE_PATH"),
		BackupSafetyCopy:  v.GetBool("BACKUP_SAFETY_COPY"),
		WorkerCount:       v.GetInt("WORKER_COUNT"),
		BackupInterval:    v.GetDuration("BACKUP_INTERVAL"),
		BackupRetention:   v.GetInt("BACKUP_RETENTION"),
		ReconcileInterval: v.GetDuration("RECONCILE_INTERVAL"),
		AllowedOrigins:    splitList(v.GetString("ALLOWED_ORIGINS")),
		RedisURL:          v.GetString("REDIS_URL"),
		IdempotencyTTL:    v.GetDuration("IDEMPOTENCY_TTL"),
		SentryDSN:         v.GetString("SENTRY_DSN"),
	}

	// Validate required configuration
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" && cfg.IsProduction() {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}

	// Set default JWT secret for development
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret-change-in-production"
	}

	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}

	return cfg, nil
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_OPEN_CONNS", 50)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("STORAGE_PATH", "./storage")
	v.SetDefault("BACKUP_SAFETY_COPY", true)
	v.SetDefault("WORKER_COUNT", 2)
	v.SetDefault("BACKUP_INTERVAL", "0s")
	v.SetDefault("BACKUP_RETENTION", 7)
	v.SetDefault("RECONCILE_INTERVAL", "24h")
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("IDEMPOTENCY_TTL", "24h")
	v.SetDefault("SENTRY_DSN", "")
	v.SetDefault("CONFIG_FILE", "")
}

// splitList reads a comma-separated value, dropping empty items
func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
