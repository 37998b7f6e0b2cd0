package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the application configuration
type Config struct {
	Port         string
	DBHost       string
	DBPort       string
	DBName       string
	DBUser       string
	DBPass       string
	DBEngine     string // "postgresql", "mysql", "sqlite"
	DBPath       string // For SQLite
	DBSSLMode    string
	LogLevel     string
	LogFormat    string // "json" or "console"
	RegistryURL  string // base URL of a running dbview service, used by browse
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// loadConfig loads configuration from environment variables
func loadConfig() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:         getEnv("PORT", "8080"),
		DBHost:       getEnv("DB_HOST", "localhost"),
		DBPort:       getEnv("DB_PORT", "5432"),
		DBName:       getEnv("DB_NAME", "dbview"),
		DBUser:       getEnv("DB_USER", "dbview"),
		DBPass:       getEnv("DB_PASS", "dbview"),
		DBEngine:     getEnv("DB_ENGINE", "sqlite"),
		DBPath:       getEnv("DB_PATH", "dbview.db"),
		DBSSLMode:    getEnv("DB_SSL_MODE", "prefer"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "json"),
		RegistryURL:  getEnv("REGISTRY_URL", ""),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// newLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func newLogger(config *Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(config.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", config.LogLevel, err)
	}

	zc := zap.NewProductionConfig()
	if config.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableCaller = true
	return zc.Build()
}

// defaultStatePath is where browse keeps view configs when no service is configured.
func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", ".dbview-state.json")
	}
	return filepath.Join(dir, "dbview", "views.json")
}
