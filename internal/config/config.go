// Package config loads run configuration from YAML files and environment
// variables.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported provisioning platforms.
const (
	PlatformAWS     = "aws"
	PlatformHetzner = "hetzner"
)

// Config holds the configuration for one baseline session run.
type Config struct {
	ServiceName string `yaml:"service_name"`
	Environment string `yaml:"environment"`
	Region      string `yaml:"region"`

	// Platform selects the provisioning backend: "aws" or "hetzner".
	Platform string `yaml:"platform"`

	// MaxAttempts bounds the provision-validate-refine cycles per
	// requirement.
	MaxAttempts int `yaml:"max_attempts"`

	// Concurrency caps how many requirement loops run at once, which in
	// turn caps how many live resource sets exist simultaneously.
	Concurrency int `yaml:"concurrency"`

	// RetryWait is the courtesy pause between attempts, letting async
	// teardown settle and respecting provider rate limits.
	RetryWait time.Duration `yaml:"retry_wait"`

	// RequirementsFile, when set, loads requirements from a YAML file
	// instead of the generation model.
	RequirementsFile string `yaml:"requirements_file"`

	// Model is the generation/refinement model name.
	Model string `yaml:"model"`
}

// Overrides carries command-line values that take precedence over the
// configuration file. Empty fields leave the loaded value in place.
type Overrides struct {
	ServiceName      string
	Environment      string
	Region           string
	RequirementsFile string
}

// Apply overlays the non-empty override values onto the configuration.
func (c *Config) Apply(o Overrides) {
	if o.ServiceName != "" {
		c.ServiceName = o.ServiceName
	}
	if o.Environment != "" {
		c.Environment = o.Environment
	}
	if o.Region != "" {
		c.Region = o.Region
	}
	if o.RequirementsFile != "" {
		c.RequirementsFile = o.RequirementsFile
	}
}

// Load reads and parses the configuration from a YAML file, applying
// defaults for unset fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		ServiceName: "EC2",
		Environment: "sandbox",
		Region:      "us-east-1",
		Platform:    PlatformAWS,
		MaxAttempts: 3,
		Concurrency: 2,
		RetryWait:   2 * time.Second,
		Model:       "gemini-2.5-flash",
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Platform != PlatformAWS && c.Platform != PlatformHetzner {
		return fmt.Errorf("unknown platform %q (expected %q or %q)", c.Platform, PlatformAWS, PlatformHetzner)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	return nil
}
