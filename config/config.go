// Package config loads the YAML configuration file and applies environment
// overrides. All fields have working defaults so a missing file is not an
// error.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"
)

const (
	DefaultProvider       = "anthropic"
	DefaultLogLevel       = "info"
	DefaultRequestTimeout = 2 * time.Minute
)

// Config is the application configuration.
type Config struct {
	// DatabasePath is the SQLite database file. Defaults to
	// ~/.forky/conversations.db.
	DatabasePath string `yaml:"DatabasePath,omitempty"`

	// Provider selects the model provider: anthropic, openai, or google.
	Provider string `yaml:"Provider,omitempty"`

	// Model overrides the provider's default model.
	Model string `yaml:"Model,omitempty"`

	// Endpoint overrides the provider's API endpoint. Optional.
	Endpoint string `yaml:"Endpoint,omitempty"`

	// SystemPrompt is prepended to every chat completion. Optional.
	SystemPrompt string `yaml:"SystemPrompt,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"LogLevel,omitempty"`

	// RequestTimeout bounds each model call, as a Go duration string
	// such as "90s" or "2m". Empty means the default.
	RequestTimeout string `yaml:"RequestTimeout,omitempty"`
}

// DefaultConfigPath returns the standard config file location,
// ~/.forky/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".forky", "config.yaml")
}

// Load reads the configuration at the given path. An empty path means the
// default location. A missing file yields the defaults. Environment
// variables override file values: FORKY_DATABASE, FORKY_PROVIDER,
// FORKY_MODEL, FORKY_ENDPOINT, FORKY_LOG_LEVEL.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if _, err := cfg.Timeout(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Timeout parses the RequestTimeout field.
func (c *Config) Timeout() (time.Duration, error) {
	if c.RequestTimeout == "" {
		return DefaultRequestTimeout, nil
	}
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid RequestTimeout %q: %w", c.RequestTimeout, err)
	}
	return d, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("FORKY_DATABASE"); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv("FORKY_PROVIDER"); v != "" {
		c.Provider = v
	}
	if v := os.Getenv("FORKY_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("FORKY_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv("FORKY_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) applyDefaults() {
	if c.DatabasePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			c.DatabasePath = "conversations.db"
		} else {
			c.DatabasePath = filepath.Join(home, ".forky", "conversations.db")
		}
	}
	if c.Provider == "" {
		c.Provider = DefaultProvider
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}
