package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// Chain verification configuration
	Chain ChainConfig

	// Task queue configuration
	Queue QueueConfig

	// Upload configuration
	Upload UploadConfig

	// Logging configuration
	Log LogConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database connection settings.
// URL takes precedence over the discrete host/port fields when set;
// an empty URL together with an empty DB_HOST means "no database",
// in which case the server falls back to the in-memory store.
type DatabaseConfig struct {
	URL          string
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// RedisConfig holds cache settings. An empty URL disables caching.
type RedisConfig struct {
	URL         string
	DialTimeout time.Duration
	ReadTimeout time.Duration
	MaxIdle     int
	IdleTimeout time.Duration
}

// ChainConfig holds on-chain verification settings. An empty RPCURL
// disables verification and the service runs in offline mode.
type ChainConfig struct {
	RPCURL          string
	ContractAddress string
	RequestTimeout  time.Duration
}

// QueueConfig holds async task queue settings
type QueueConfig struct {
	Workers       int
	TaskRetention time.Duration
}

// UploadConfig holds avatar upload settings
type UploadConfig struct {
	MaxAvatarSize int64 // in bytes
	AvatarDir     string
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string
	Format string // "json" or "pretty"
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:          getEnv("DATABASE_URL", ""),
			Host:         getEnv("DB_HOST", ""),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Name:         getEnv("DB_NAME", "forum"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getIntEnv("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getDurationEnv("DB_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:         getEnv("REDIS_URL", ""),
			DialTimeout: getDurationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout: getDurationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
			MaxIdle:     getIntEnv("REDIS_MAX_IDLE", 10),
			IdleTimeout: getDurationEnv("REDIS_IDLE_TIMEOUT", 240*time.Second),
		},
		Chain: ChainConfig{
			RPCURL:          getEnv("CHAIN_RPC_URL", ""),
			ContractAddress: getEnv("CONTRACT_ADDRESS", ""),
			RequestTimeout:  getDurationEnv("CHAIN_REQUEST_TIMEOUT", 10*time.Second),
		},
		Queue: QueueConfig{
			Workers:       getIntEnv("ASYNC_WORKERS", 10),
			TaskRetention: getDurationEnv("TASK_RETENTION", time.Hour),
		},
		Upload: UploadConfig{
			MaxAvatarSize: getInt64Env("MAX_AVATAR_SIZE", 5*1024*1024), // 5MB
			AvatarDir:     getEnv("AVATAR_DIR", "./data/avatars"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Chain.RPCURL != "" && c.Chain.ContractAddress == "" {
		return fmt.Errorf("CONTRACT_ADDRESS is required when CHAIN_RPC_URL is set")
	}
	if c.Queue.Workers < 0 {
		return fmt.Errorf("ASYNC_WORKERS must not be negative")
	}
	return nil
}

// HasDatabase reports whether a Postgres backend is configured.
func (c *Config) HasDatabase() bool {
	return c.Database.URL != "" || c.Database.Host != ""
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
