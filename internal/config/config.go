// Package config loads and validates grove.yml.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where commands look for configuration when --config is not
// given.
const DefaultPath = "grove.yml"

// instanceNamePattern restricts instance names to characters that are safe
// inside Redis key segments.
var instanceNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// GroveConfig represents the top-level grove.yml configuration.
type GroveConfig struct {
	Version  string      `yaml:"version"`
	Instance string      `yaml:"instance"`
	Redis    RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig specifies how to reach the backing Redis server.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// Validate performs strict validation and fills in defaults.
func (c *GroveConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Instance == "" {
		c.Instance = "default"
	}
	if !instanceNamePattern.MatchString(c.Instance) {
		return fmt.Errorf("invalid instance name '%s' (allowed: letters, digits, '-', '_')", c.Instance)
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must be >= 0, got %d", c.Redis.DB)
	}

	return nil
}

// Load reads and validates grove.yml from the specified path.
func Load(path string) (*GroveConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config GroveConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadOrDefault loads the config file at path if it exists, otherwise
// returns a validated default configuration. Commands work against a local
// Redis out of the box without a grove.yml.
func LoadOrDefault(path string) (*GroveConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		config := &GroveConfig{Version: "1.0"}
		if err := config.Validate(); err != nil {
			return nil, err
		}
		return config, nil
	}
	return Load(path)
}
