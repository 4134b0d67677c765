// Package config loads service configuration from an optional YAML
// file overlaid with environment variables, and owns logger
// construction.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	// Server
	Port string `yaml:"port"`
	Env  string `yaml:"env"`

	// Graph store backend: "sqlite", "postgres", "memory", or
	// "remote" (the external graph persistence service).
	GraphBackend   string `yaml:"graph_backend"`
	DBPath         string `yaml:"db_path"`
	DBDSN          string `yaml:"db_dsn"`
	MigrationsPath string `yaml:"migrations_path"`

	// Remote graph persistence service
	GraphServiceURL   string `yaml:"graph_service_url"`
	GraphServiceToken string `yaml:"graph_service_token"`

	// Auth
	JWTSecret      string `yaml:"jwt_secret"`
	JWTExpiryHours int    `yaml:"jwt_expiry_hours"`
	APIKey         string `yaml:"api_key"`

	// Allocation engine
	WriteDebounceMillis    int `yaml:"write_debounce_millis"`
	FailureThreshold       int `yaml:"failure_threshold"`
	FailureCooldownSeconds int `yaml:"failure_cooldown_seconds"`

	// CORS
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// Load reads configuration from CONFIG_FILE (if set) and then from
// environment variables, which always win.
func Load() *Config {
	cfg := &Config{
		Port:                   "8080",
		Env:                    "development",
		GraphBackend:           "sqlite",
		DBPath:                 "./data/roadmapper.db",
		MigrationsPath:         "./internal/graph/migrations",
		JWTExpiryHours:         24,
		WriteDebounceMillis:    1000,
		FailureThreshold:       3,
		FailureCooldownSeconds: 300,
		CORSAllowedOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
		LogLevel:               "info",
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			// Config problems before the logger exists go straight to
			// stderr.
			fmt.Fprintf(os.Stderr, "failed to load config file %s: %v\n", path, err)
			os.Exit(1)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Env = getEnv("ENV", cfg.Env)
	cfg.GraphBackend = getEnv("GRAPH_BACKEND", cfg.GraphBackend)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.DBDSN = getEnv("DB_DSN", cfg.DBDSN)
	cfg.MigrationsPath = getEnv("MIGRATIONS_PATH", cfg.MigrationsPath)
	cfg.GraphServiceURL = getEnv("GRAPH_SERVICE_URL", cfg.GraphServiceURL)
	cfg.GraphServiceToken = getEnv("GRAPH_SERVICE_TOKEN", cfg.GraphServiceToken)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTExpiryHours = getEnvAsInt("JWT_EXPIRY_HOURS", cfg.JWTExpiryHours)
	cfg.APIKey = getEnv("API_KEY", cfg.APIKey)
	cfg.WriteDebounceMillis = getEnvAsInt("WRITE_DEBOUNCE_MILLIS", cfg.WriteDebounceMillis)
	cfg.FailureThreshold = getEnvAsInt("FAILURE_THRESHOLD", cfg.FailureThreshold)
	cfg.FailureCooldownSeconds = getEnvAsInt("FAILURE_COOLDOWN_SECONDS", cfg.FailureCooldownSeconds)
	cfg.CORSAllowedOrigins = getEnvAsSlice("CORS_ALLOWED_ORIGINS", cfg.CORSAllowedOrigins)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	if cfg.Env == "production" && cfg.JWTSecret == "" {
		logger := MustInitLogger(cfg.Env, cfg.LogLevel)
		logger.Fatal("JWT_SECRET must be set in production environment")
	}

	return cfg
}

// loadFile overlays values from a YAML config file.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// JWTExpiry returns the JWT expiry duration
func (c *Config) JWTExpiry() time.Duration {
	return time.Duration(c.JWTExpiryHours) * time.Hour
}

// WriteDebounce returns the write-coalescing debounce duration
func (c *Config) WriteDebounce() time.Duration {
	return time.Duration(c.WriteDebounceMillis) * time.Millisecond
}

// FailureCooldown returns the not-found suppression cooldown
func (c *Config) FailureCooldown() time.Duration {
	return time.Duration(c.FailureCooldownSeconds) * time.Second
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads an environment variable as int or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Silently use default - logger not available yet during config load
		return defaultValue
	}
	return value
}

// getEnvAsSlice reads an environment variable as comma-separated values
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}
	return result
}
