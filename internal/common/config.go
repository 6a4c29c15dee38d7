package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Progress backends.
const (
	ProgressMemory = "memory"
	ProgressSQLite = "sqlite"
	ProgressRedis  = "redis"
)

// Config holds all application configuration
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Server   ServerConfig   `yaml:"server"`
	Progress ProgressConfig `yaml:"progress"`
	Log      LogConfig      `yaml:"log"`
}

// StoreConfig selects where images and sidecars live. ServerURL wins over
// DataDir when both are set.
type StoreConfig struct {
	DataDir     string        `yaml:"data_dir"`
	ServerURL   string        `yaml:"server_url"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Addr         string `yaml:"addr"`
	MaxBodyBytes int    `yaml:"max_body_bytes"`
}

// ProgressConfig chooses the viewed/updated tracker backend.
type ProgressConfig struct {
	Backend     string `yaml:"backend"`
	SQLitePath  string `yaml:"sqlite_path"`
	RedisURL    string `yaml:"redis_url"`
	RedisPrefix string `yaml:"redis_prefix"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// LoadConfig reads an optional .env file, then environment variables, then
// the YAML file at path when path is non-empty.
func LoadConfig(path string) (*Config, error) {
	// a missing .env is normal
	_ = godotenv.Load()

	cfg := &Config{
		Store: StoreConfig{
			DataDir:     getEnv("OCRLABEL_DATA_DIR", "./data"),
			ServerURL:   getEnv("OCRLABEL_SERVER_URL", ""),
			HTTPTimeout: getEnvAsDuration("OCRLABEL_HTTP_TIMEOUT", 15*time.Second),
		},
		Server: ServerConfig{
			Addr:         getEnv("OCRLABEL_ADDR", ":3000"),
			MaxBodyBytes: getEnvAsInt("OCRLABEL_MAX_BODY_BYTES", 10<<20),
		},
		Progress: ProgressConfig{
			Backend:     getEnv("OCRLABEL_PROGRESS", ProgressSQLite),
			SQLitePath:  getEnv("OCRLABEL_SQLITE_PATH", "progress.db"),
			RedisURL:    getEnv("OCRLABEL_REDIS_URL", "redis://localhost:6379/0"),
			RedisPrefix: getEnv("OCRLABEL_REDIS_PREFIX", "ocrlabel:progress"),
		},
		Log: LogConfig{
			Level: getEnv("OCRLABEL_LOG_LEVEL", "info"),
			File:  getEnv("OCRLABEL_LOG_FILE", "ocrlabel.log"),
		},
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, NewAppError("CONFIG_ERROR", "read config file", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", "parse config file "+path, err)
		}
	}
	cfg.Progress.Backend = strings.ToLower(strings.TrimSpace(cfg.Progress.Backend))
	return cfg, nil
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Store.DataDir == "" && c.Store.ServerURL == "" {
		return NewAppError("CONFIG_ERROR", "OCRLABEL_DATA_DIR or OCRLABEL_SERVER_URL is required", ErrInvalidInput)
	}
	switch c.Progress.Backend {
	case ProgressMemory:
	case ProgressSQLite:
		if c.Progress.SQLitePath == "" {
			return NewAppError("CONFIG_ERROR", "OCRLABEL_SQLITE_PATH is required for the sqlite backend", ErrInvalidInput)
		}
	case ProgressRedis:
		if c.Progress.RedisURL == "" {
			return NewAppError("CONFIG_ERROR", "OCRLABEL_REDIS_URL is required for the redis backend", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown progress backend %q", c.Progress.Backend), ErrInvalidInput)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return NewAppError("CONFIG_ERROR", "OCRLABEL_MAX_BODY_BYTES must be positive", ErrInvalidInput)
	}
	if c.Store.HTTPTimeout < 0 {
		return NewAppError("CONFIG_ERROR", "OCRLABEL_HTTP_TIMEOUT must not be negative", ErrInvalidInput)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
