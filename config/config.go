package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                  string
	DataDir               string
	WorkflowTemplate      string
	EnforceEventAllowlist bool
	DatabaseURL           string
	LogLevel              string
	AllowedOrigin         string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; variables already set in the OS win.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads configuration from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "8191"),
		DataDir:       getEnv("DATA_DIR", "./data"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "*"),
	}
	cfg.WorkflowTemplate = getEnv("WORKFLOW_TEMPLATE", filepath.Join(cfg.DataDir, "workflowTemplate.json"))

	enforce, err := getBool("ENFORCE_EVENT_ALLOWLIST", false)
	if err != nil {
		return nil, err
	}
	cfg.EnforceEventAllowlist = enforce

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", cfg.LogLevel)
	}

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return nil, fmt.Errorf("PORT must be numeric, got %q", cfg.Port)
	}

	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return v, nil
}
