// Package config loads runtime configuration from the environment. A
// .env file is honored in development; real deployments set the variables
// directly.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Env      string
	LogLevel slog.Level

	Server   ServerConfig
	Database DatabaseConfig
	LLM      LLMConfig
	Classify ClassifyConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	RateLimitPerSecond int
	RateLimitBurst     int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
}

// LLMConfig points at an OpenAI-compatible endpoint. An empty APIKey
// disables the model and leaves classification to the keyword engine.
type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type ClassifyConfig struct {
	// Schedule is a cron expression for the nightly sweep.
	Schedule  string
	BatchSize int
	// TaxonomyPath points at a YAML category file; empty means built-in.
	TaxonomyPath string
}

// Load reads configuration from environment variables, falling back to
// development defaults.
func Load() (*Config, error) {
	// Missing .env is fine outside development.
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: parseLogLevel(getEnv("LOG_LEVEL", "info")),
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "0.0.0.0"),
			Port:               getEnvAsInt("SERVER_PORT", 8080),
			RateLimitPerSecond: getEnvAsInt("RATE_LIMIT_PER_SECOND", 20),
			RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 40),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Database: getEnv("DB_NAME", "pocketledger"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 10),
		},
		LLM: LLMConfig{
			BaseURL: getEnv("LLM_BASE_URL", "https://api.openai.com"),
			APIKey:  getEnv("LLM_API_KEY", ""),
			Model:   getEnv("LLM_MODEL", "gpt-4o-mini"),
		},
		Classify: ClassifyConfig{
			Schedule:     getEnv("CLASSIFY_SCHEDULE", "0 2 * * *"),
			BatchSize:    getEnvAsInt("CLASSIFY_BATCH_SIZE", 100),
			TaxonomyPath: getEnv("TAXONOMY_PATH", ""),
		},
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid SERVER_PORT %d", cfg.Server.Port)
	}
	return cfg, nil
}

// DSN renders the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

// Enabled reports whether an LLM is configured.
func (l LLMConfig) Enabled() bool {
	return l.APIKey != ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func parseLogLevel(raw string) slog.Level {
	switch raw {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
