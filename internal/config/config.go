// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the conduit CLI configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when configuration validation fails.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config represents the complete conduit CLI configuration.
type Config struct {
	Log LogConfig `yaml:"log"`

	// CABundle is the certificate bundle path applied process-wide before
	// any session is created. Empty means the system trust store.
	CABundle string `yaml:"ca_bundle,omitempty"`

	Request RequestConfig `yaml:"request"`
}

// LogConfig configures CLI logging.
type LogConfig struct {
	// Level sets the minimum log level (debug, info, warn, error).
	// Default: info
	Level string `yaml:"level"`

	// Format sets the output format (json, text).
	// Default: text
	Format string `yaml:"format"`
}

// RequestConfig holds defaults applied to every request the CLI issues.
type RequestConfig struct {
	// Timeout is the whole-request timeout. Zero disables it.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Context is the default connection context key.
	Context int `yaml:"context,omitempty"`

	// Retries is the number of additional attempts for transient
	// failures. Zero means a single attempt.
	Retries int `yaml:"retries,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the configuration from path. An empty path returns the
// defaults; a named file must exist and parse.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Log.Level)
	}
	switch c.Log.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Log.Format)
	}
	if c.Request.Timeout < 0 {
		return fmt.Errorf("%w: request timeout must be non-negative, got %v", ErrInvalidConfig, c.Request.Timeout)
	}
	if c.Request.Retries < 0 {
		return fmt.Errorf("%w: request retries must be non-negative, got %d", ErrInvalidConfig, c.Request.Retries)
	}
	if c.CABundle != "" {
		if _, err := os.Stat(c.CABundle); err != nil {
			return fmt.Errorf("%w: ca_bundle %s: %v", ErrInvalidConfig, c.CABundle, err)
		}
	}
	return nil
}
