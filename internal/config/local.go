package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/refacto/internal/domain"
	"gopkg.in/yaml.v3"
)

// Store drivers
const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Concurrency policies for on-demand backend calls
const (
	PolicyRace      = "race"
	PolicySerialize = "serialize"
)

var ErrInvalidConfig = errors.New("invalid config")

// LocalConfig holds configuration for the refacto client
type LocalConfig struct {
	Backend     BackendConfig     `yaml:"backend"`
	Resilience  ResilienceConfig  `yaml:"resilience"`
	Store       StoreConfig       `yaml:"store"`
	Session     SessionConfig     `yaml:"session"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	LogLevel    string            `yaml:"log_level"`
}

// BackendConfig holds the exercise backend settings
type BackendConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// ResilienceConfig controls the guards around backend round-trips.
// Retry is off by default: every failure is terminal for that attempt.
type ResilienceConfig struct {
	CircuitBreaker bool `yaml:"circuit_breaker"`
	RateLimit      bool `yaml:"rate_limit"`
	RatePerSecond  int  `yaml:"rate_per_second"`
	Retry          bool `yaml:"retry"`
	MaxAttempts    int  `yaml:"max_attempts"`
}

// StoreConfig selects the durable key-value backend for the suggestion log
type StoreConfig struct {
	Driver string `yaml:"driver"` // json, sqlite, memory
	Path   string `yaml:"path,omitempty"`
}

// SessionConfig holds challenge session behaviour
type SessionConfig struct {
	Greeting        string `yaml:"greeting"`
	PassThreshold   int    `yaml:"pass_threshold"`
	AwaitSuggestion bool   `yaml:"await_suggestion"`
}

// ConcurrencyConfig controls what happens when a check or suggestion is
// requested while a previous one is still in flight
type ConcurrencyConfig struct {
	Policy              string `yaml:"policy"` // race, serialize
	MaxQueue            int    `yaml:"max_queue"`
	QueueTimeoutSeconds int    `yaml:"queue_timeout_seconds"`
}

// RefactoDir returns the path to ~/.refacto
func RefactoDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".refacto"), nil
}

// EnsureRefactoDir creates ~/.refacto and subdirectories if they don't exist
func EnsureRefactoDir() (string, error) {
	dir, err := RefactoDir()
	if err != nil {
		return "", err
	}

	subdirs := []string{
		"",
		"logs",
		"storage",
		"workspace",
	}

	for _, subdir := range subdirs {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}

	return dir, nil
}

// DefaultLocalConfig returns sensible defaults for local use
func DefaultLocalConfig() *LocalConfig {
	return &LocalConfig{
		Backend: BackendConfig{
			URL:            "http://127.0.0.1:8000",
			TimeoutSeconds: 120,
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: true,
			RateLimit:      true,
			RatePerSecond:  5,
			Retry:          false,
			MaxAttempts:    3,
		},
		Store: StoreConfig{
			Driver: StoreJSON,
		},
		Session: SessionConfig{
			Greeting:        domain.DefaultGreeting,
			PassThreshold:   90,
			AwaitSuggestion: true,
		},
		Concurrency: ConcurrencyConfig{
			Policy:              PolicyRace,
			MaxQueue:            4,
			QueueTimeoutSeconds: 120,
		},
		LogLevel: "info",
	}
}

// Validate checks enumerated settings and ranges
func (c *LocalConfig) Validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("%w: backend.url is required", ErrInvalidConfig)
	}
	switch c.Store.Driver {
	case StoreJSON, StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("%w: unknown store driver %q", ErrInvalidConfig, c.Store.Driver)
	}
	switch c.Concurrency.Policy {
	case PolicyRace, PolicySerialize:
	default:
		return fmt.Errorf("%w: unknown concurrency policy %q", ErrInvalidConfig, c.Concurrency.Policy)
	}
	if c.Session.PassThreshold < 1 || c.Session.PassThreshold > 100 {
		return fmt.Errorf("%w: session.pass_threshold must be within 1-100", ErrInvalidConfig)
	}
	return nil
}

// StorePath returns the configured store location, defaulting to
// ~/.refacto/storage (json) or ~/.refacto/storage/refacto.db (sqlite)
func (c *LocalConfig) StorePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	dir, err := RefactoDir()
	if err != nil {
		return "", err
	}
	if c.Store.Driver == StoreSQLite {
		return filepath.Join(dir, "storage", "refacto.db"), nil
	}
	return filepath.Join(dir, "storage"), nil
}

// LoadLocalConfig loads configuration from ~/.refacto/config.yaml and
// applies environment overrides
func LoadLocalConfig() (*LocalConfig, error) {
	dir, err := RefactoDir()
	if err != nil {
		return nil, err
	}

	cfg, err := loadFile(filepath.Join(dir, "config.yaml"))
	if err != nil {
		return nil, err
	}

	ApplyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(configPath string) (*LocalConfig, error) {
	// If config doesn't exist, return defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultLocalConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultLocalConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveLocalConfig saves configuration to ~/.refacto/config.yaml
func SaveLocalConfig(cfg *LocalConfig) error {
	dir, err := EnsureRefactoDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(dir, "config.yaml")

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}
