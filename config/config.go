// Package config provides configuration loading and access for the
// simulation core.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/lancet/pbd"
	"github.com/pthm-cable/lancet/sph"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Solver    pbd.Config      `yaml:"solver"`
	Fluid     sph.Config      `yaml:"fluid"`
	Collision CollisionConfig `yaml:"collision"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// CollisionConfig holds the continuous collision detection parameters.
type CollisionConfig struct {
	// Thickness of thin (suture-like) geometry.
	Thickness float64 `yaml:"thickness"`
	// Tolerance widening the internal-intersection parameter interval.
	Tolerance float64 `yaml:"tolerance"`
	// ContactStiffness scales collision constraint corrections.
	ContactStiffness float64 `yaml:"contact_stiffness"`
}

// TelemetryConfig holds output settings.
type TelemetryConfig struct {
	// OutputDir receives per-run CSV files; empty disables output.
	OutputDir string `yaml:"output_dir"`
	// LogEveryNSteps throttles step records; 0 records every step.
	LogEveryNSteps int `yaml:"log_every_n_steps"`
}

// Load reads configuration from a YAML file, merging over the embedded
// defaults. An empty path loads only the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into the same struct: only fields present in the file
		// overwrite the defaults.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Solver.Validate(); err != nil {
		return err
	}
	if err := c.Fluid.Validate(); err != nil {
		return err
	}
	if c.Collision.Thickness <= 0 {
		return fmt.Errorf("config: collision thickness must be positive, got %v", c.Collision.Thickness)
	}
	return nil
}
