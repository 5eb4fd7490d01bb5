package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the arcade service
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Content  ContentConfig
	Rewards  RewardsConfig
	Games    GamesConfig
	Cleanup  CleanupConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

// DatabaseConfig holds PostgreSQL configuration. An empty DSN keeps sessions
// in memory.
type DatabaseConfig struct {
	DSN           string
	MaxConns      int
	MigrationsDir string
	AutoMigrate   bool
}

// RedisConfig holds Redis configuration. An empty address keeps snapshots
// and preferences in memory.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// ContentConfig holds activity catalog configuration
type ContentConfig struct {
	Dir      string
	DSN      string
	Watch    bool
	Debounce time.Duration
}

// RewardsConfig holds reward service configuration
type RewardsConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// GamesConfig holds session tuning
type GamesConfig struct {
	SessionTTL time.Duration
	EventRate  float64
	EventBurst int
}

// CleanupConfig holds cleanup worker configuration
type CleanupConfig struct {
	Interval time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			DSN:           getEnv("DATABASE_DSN", ""),
			MaxConns:      getEnvAsInt("DATABASE_MAX_CONNS", 20),
			MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),
			AutoMigrate:   getEnvAsBool("DATABASE_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Content: ContentConfig{
			Dir:      getEnv("CONTENT_DIR", "./content"),
			DSN:      getEnv("CONTENT_DSN", ""),
			Watch:    getEnvAsBool("CONTENT_WATCH", false),
			Debounce: getEnvAsDuration("CONTENT_WATCH_DEBOUNCE", 500*time.Millisecond),
		},
		Rewards: RewardsConfig{
			BaseURL: getEnv("REWARD_BASE_URL", "http://localhost:3000"),
			APIKey:  getEnv("REWARD_API_KEY", ""),
			Timeout: getEnvAsDuration("REWARD_TIMEOUT", 10*time.Second),
		},
		Games: GamesConfig{
			SessionTTL: getEnvAsDuration("SESSION_TTL", 2*time.Hour),
			EventRate:  getEnvAsFloat("GAMES_EVENT_RATE", 10),
			EventBurst: getEnvAsInt("GAMES_EVENT_BURST", 20),
		},
		Cleanup: CleanupConfig{
			Interval: getEnvAsDuration("CLEANUP_INTERVAL", time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Content.Dir == "" && c.Content.DSN == "" {
		return fmt.Errorf("content dir or content DSN is required")
	}

	u, err := url.Parse(c.Rewards.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid reward base URL: %q", c.Rewards.BaseURL)
	}
	if c.Rewards.Timeout <= 0 {
		return fmt.Errorf("reward timeout must be positive")
	}

	if c.Games.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if c.Games.EventRate < 0 {
		return fmt.Errorf("invalid event rate: %v", c.Games.EventRate)
	}
	if c.Games.EventRate > 0 && c.Games.EventBurst < 1 {
		return fmt.Errorf("event burst must be at least 1 when throttling")
	}

	if c.Cleanup.Interval <= 0 {
		return fmt.Errorf("cleanup interval must be positive")
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}

	return nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ParseLevel maps a LOG_LEVEL value to a slog level
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level: %q", s)
	}
	return level, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
