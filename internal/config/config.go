// Package config loads and validates the engine's runtime configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dshills/heapdb/internal/storage"
)

// Config is the complete runtime configuration for the engine.
type Config struct {
	// DataDir is the directory heap files and block stores are rooted under.
	DataDir string `json:"data_dir"`

	// LogLevel controls the verbosity of the default logger: "debug",
	// "info", "warn", or "error".
	LogLevel string `json:"log_level"`

	// PageSize is read-only: it must either be absent from the config file
	// or match storage.PageSize exactly. The on-disk page layout is fixed
	// at compile time, so this field exists only to reject a config file
	// written for a different page size rather than to configure one.
	PageSize int `json:"page_size"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir:  "./data",
		LogLevel: "info",
		PageSize: storage.PageSize,
	}
}

// LoadFromFile loads configuration from a JSON file, starting from
// DefaultConfig and overlaying whatever fields the file sets.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFlags merges command-line flag values into the configuration.
// An empty string leaves the corresponding field unchanged.
func (c *Config) LoadFromFlags(dataDir, logLevel string) {
	if dataDir != "" {
		c.DataDir = dataDir
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data dir must not be empty")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	if c.PageSize != 0 && c.PageSize != storage.PageSize {
		return fmt.Errorf("page size is fixed at %d, got %d", storage.PageSize, c.PageSize)
	}
	c.PageSize = storage.PageSize

	return nil
}
