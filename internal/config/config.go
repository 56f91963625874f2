// Package config holds the indexer's on-disk YAML configuration, adapted
// from this codebase's node configuration pattern.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the indexer.
type Config struct {
	// StorePath is the path to the SQLite database file.
	StorePath string `yaml:"store_path"`

	// NodeEndpoint addresses the remote validator node the ingestion loop
	// pulls blocks from. Its transport is out of scope for this repository;
	// this field only names where a real nodeclient.Client implementation
	// would dial.
	NodeEndpoint string `yaml:"node_endpoint"`

	// Logging holds logging settings.
	Logging LoggingConfig `yaml:"logging"`

	// OptimizeInterval is saved to and loaded from the config file. The
	// store's optimize worker does not read it; it always runs on the fixed
	// store.OptimizeInterval (one hour).
	OptimizeInterval time.Duration `yaml:"optimize_interval"`

	// RetryInterval is saved to and loaded from the config file. The store
	// and the ingestion loop do not read it; they always use their fixed
	// one-second store.RetryDelay and ingest.RetryDelay.
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level"`

	// File is a log file path saved to and loaded from the config file. The
	// example driver does not read it and always logs to stderr.
	File string `yaml:"file"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		StorePath:    "~/.melblkidx/index.db",
		NodeEndpoint: "",
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
		OptimizeInterval: time.Hour,
		RetryInterval:    time.Second,
	}
}

// ConfigFileName is the default config file name.
const ConfigFileName = "config.yaml"

// LoadConfig loads configuration from dataDir/config.yaml. If the file
// doesn't exist, it creates one with default values.
func LoadConfig(dataDir string) (*Config, error) {
	expandedDir := expandPath(dataDir)
	configPath := filepath.Join(expandedDir, ConfigFileName)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.StorePath = filepath.Join(dataDir, "index.db")
		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("config: create default: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", configPath, err)
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file, creating its directory if
// needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("config: create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	header := []byte("# melblkidx configuration\n# Generated automatically on first run\n\n")
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// ConfigPath returns the full path to the config file for the given data
// directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(expandPath(dataDir), ConfigFileName)
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
