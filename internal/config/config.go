// Package config loads provider credentials from the environment and job
// definitions from YAML files.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvAPIKey  = "SAPI_API_KEY"
	EnvAPIHost = "SAPI_API_HOST"
	EnvBaseURL = "SAPI_BASE_URL"
	EnvDBPath  = "CATCHUP_DB"
)

// Defaults for optional settings.
const (
	DefaultAPIHost = "streaming-availability.p.rapidapi.com"
	DefaultBaseURL = "https://streaming-availability.p.rapidapi.com"
	DefaultDBPath  = "catchup.db"
)

// Config holds everything needed to reach the provider and the database.
type Config struct {
	APIKey  string
	APIHost string
	BaseURL string
	DBPath  string
}

// Load reads configuration from the environment, after sourcing a .env
// file when one exists alongside the working directory. Only the API key
// is mandatory.
func Load() (Config, error) {
	// Missing .env is fine, variables may be set in the environment.
	_ = godotenv.Load()

	cfg := Config{
		APIKey:  os.Getenv(EnvAPIKey),
		APIHost: getenvDefault(EnvAPIHost, DefaultAPIHost),
		BaseURL: getenvDefault(EnvBaseURL, DefaultBaseURL),
		DBPath:  getenvDefault(EnvDBPath, DefaultDBPath),
	}
	if cfg.APIKey == "" {
		return Config{}, fmt.Errorf("%s is not set", EnvAPIKey)
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
