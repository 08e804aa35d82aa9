package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig   `yaml:"server"`
	Metrics   MetricsConfig  `yaml:"metrics"`
	Database  DatabaseConfig `yaml:"database"`
	Cooking   CookingConfig  `yaml:"cooking"`
	Redis     RedisConfig    `yaml:"redis"`
	QR        QRConfig       `yaml:"qr"`
	CORS      CORSConfig     `yaml:"cors"`
	LogLevel  string         `yaml:"log_level"`
	LogFormat string         `yaml:"log_format"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	LogMode         bool          `yaml:"log_mode"`
	Seed            bool          `yaml:"seed"`
}

// CookingConfig tunes the cook operation.
// DefaultShelfLife, when set, dates cooked batches that arrive without an
// explicit expiry. MaxAttempts bounds retries after a concurrent stock change.
type CookingConfig struct {
	DefaultShelfLife time.Duration `yaml:"default_shelf_life"`
	MaxAttempts      int           `yaml:"max_attempts"`
	LockTTL          time.Duration `yaml:"lock_ttl"`
}

// RedisConfig enables distributed stock locks. An empty Addr keeps locks in process.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type QRConfig struct {
	SigningKey string        `yaml:"signing_key"`
	TTL        time.Duration `yaml:"ttl"`
	BaseURL    string        `yaml:"base_url"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Database: DatabaseConfig{
			Driver:          "sqlite3",
			DSN:             "supplytrack.db?_busy_timeout=5000",
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		Cooking: CookingConfig{
			MaxAttempts: 3,
			LockTTL:     10 * time.Second,
		},
		QR: QRConfig{
			SigningKey: "change-me",
			TTL:        72 * time.Hour,
			BaseURL:    "http://localhost:8080",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// Load reads path on top of the defaults, applies SUPPLYTRACK_* environment
// overrides and validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnv("SUPPLYTRACK_HOST", c.Server.Host)
	c.Server.Port = getEnvAsInt("SUPPLYTRACK_PORT", c.Server.Port)
	c.Metrics.Port = getEnvAsInt("SUPPLYTRACK_METRICS_PORT", c.Metrics.Port)
	c.Database.Driver = getEnv("SUPPLYTRACK_DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("SUPPLYTRACK_DB_DSN", c.Database.DSN)
	c.Redis.Addr = getEnv("SUPPLYTRACK_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("SUPPLYTRACK_REDIS_PASSWORD", c.Redis.Password)
	c.QR.SigningKey = getEnv("SUPPLYTRACK_QR_SIGNING_KEY", c.QR.SigningKey)
	c.CORS.AllowedOrigins = getEnvAsSlice("SUPPLYTRACK_CORS_ORIGINS", c.CORS.AllowedOrigins)
	c.LogLevel = getEnv("SUPPLYTRACK_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("SUPPLYTRACK_LOG_FORMAT", c.LogFormat)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %s (must be sqlite3 or postgres)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn is required")
	}

	if c.Cooking.MaxAttempts < 1 {
		return fmt.Errorf("cooking max_attempts must be at least 1, got %d", c.Cooking.MaxAttempts)
	}
	if c.Cooking.DefaultShelfLife < 0 {
		return errors.New("cooking default_shelf_life cannot be negative")
	}
	if c.Cooking.LockTTL <= 0 {
		return errors.New("cooking lock_ttl must be positive")
	}

	if c.QR.SigningKey == "" {
		return errors.New("qr signing_key is required")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.LogFormat)
	}

	return nil
}

// Addr returns the API listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Helper functions for reading environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	return strings.Split(valueStr, ",")
}
