// Package config provides layered configuration for the Intersectx chat
// client: defaults, then .env files, then environment variables, then CLI
// flags bound through viper.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"intersectx/internal/logger"
	"intersectx/internal/session"
)

// Defaults applied when neither flags, environment, nor .env files set a value.
const (
	DefaultBaseURL        = "http://localhost:8080"
	DefaultCompany        = "venture-insights"
	DefaultRequestTimeout = 30 * time.Second
)

// Config holds the client configuration resolved at startup.
type Config struct {
	// BaseURL is the root of the remote thread API.
	BaseURL string

	// Company is the path segment used for file uploads.
	Company string

	// UserEmail identifies the current user on thread API requests.
	UserEmail string

	// UserName is the display name stamped on outgoing messages.
	UserName string

	// RequestTimeout bounds every non-streaming API call.
	RequestTimeout time.Duration

	// ThreadLoadDebounce suppresses repeated loads of the same thread.
	ThreadLoadDebounce time.Duration

	// ThreadCreateDebounce suppresses repeated thread creations.
	ThreadCreateDebounce time.Duration
}

// Load resolves the configuration. It loads .env files first (user config
// directory, then working directory, local values winning), then reads the
// INTERSECTX_* environment through viper on top of the defaults.
func Load() (*Config, error) {
	loadConfigDotEnv()
	loadLocalDotEnv()

	v := viper.New()
	v.SetEnvPrefix("INTERSECTX")
	v.AutomaticEnv()

	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("company", DefaultCompany)
	v.SetDefault("user_email", "")
	v.SetDefault("user_name", "")
	v.SetDefault("request_timeout", DefaultRequestTimeout)
	v.SetDefault("thread_load_debounce", session.DefaultLoadDebounce)
	v.SetDefault("thread_create_debounce", session.DefaultCreateDebounce)

	cfg := &Config{
		BaseURL:              v.GetString("base_url"),
		Company:              v.GetString("company"),
		UserEmail:            v.GetString("user_email"),
		UserName:             v.GetString("user_name"),
		RequestTimeout:       v.GetDuration("request_timeout"),
		ThreadLoadDebounce:   v.GetDuration("thread_load_debounce"),
		ThreadCreateDebounce: v.GetDuration("thread_create_debounce"),
	}

	logger.Debug("Configuration loaded",
		"base_url", cfg.BaseURL,
		"company", cfg.Company,
		"request_timeout", cfg.RequestTimeout.String())

	return cfg, nil
}

// loadConfigDotEnv loads .env from the user's config directory
// (~/.config/intersectx/.env). A missing file is not an error.
func loadConfigDotEnv() {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}

	envPath := filepath.Join(home, ".config", "intersectx", ".env")
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		return
	}

	if err := godotenv.Load(envPath); err != nil {
		logger.Warn("Failed to load config .env", "path", envPath, "error", err)
	}
}

// loadLocalDotEnv loads .env from the current working directory.
// A missing file is not an error.
func loadLocalDotEnv() {
	workDir, err := os.Getwd()
	if err != nil {
		return
	}

	envPath := filepath.Join(workDir, ".env")
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		return
	}

	if err := godotenv.Load(envPath); err != nil {
		logger.Warn("Failed to load local .env", "path", envPath, "error", err)
	}
}
