package config

import (
	"os"
	"strconv"
)

// Environment overrides, applied on top of config.yaml
const (
	EnvAPIURL          = "REFACTO_API_URL"
	EnvTimeout         = "REFACTO_TIMEOUT"
	EnvStore           = "REFACTO_STORE"
	EnvStorePath       = "REFACTO_STORE_PATH"
	EnvLogLevel        = "REFACTO_LOG_LEVEL"
	EnvConcurrency     = "REFACTO_CONCURRENCY"
	EnvAwaitSuggestion = "REFACTO_AWAIT_SUGGESTION"
	EnvRetry           = "REFACTO_RETRY"
)

// ApplyEnv overrides cfg fields from the environment
func ApplyEnv(cfg *LocalConfig) {
	cfg.Backend.URL = getEnv(EnvAPIURL, cfg.Backend.URL)
	cfg.Backend.TimeoutSeconds = getEnvInt(EnvTimeout, cfg.Backend.TimeoutSeconds)
	cfg.Store.Driver = getEnv(EnvStore, cfg.Store.Driver)
	cfg.Store.Path = getEnv(EnvStorePath, cfg.Store.Path)
	cfg.LogLevel = getEnv(EnvLogLevel, cfg.LogLevel)
	cfg.Concurrency.Policy = getEnv(EnvConcurrency, cfg.Concurrency.Policy)
	cfg.Session.AwaitSuggestion = getEnvBool(EnvAwaitSuggestion, cfg.Session.AwaitSuggestion)
	cfg.Resilience.Retry = getEnvBool(EnvRetry, cfg.Resilience.Retry)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
