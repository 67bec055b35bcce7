// Package config provides configuration loading and management for bivssm.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"bivssm/pkg/sampling"
	"bivssm/pkg/ssm"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Input describes where the shape model lives
	Input struct {
		// Dir is the directory holding the model artifact and the reference mesh
		Dir string `yaml:"dir"`

		// ModelFile is the shape model artifact name inside Dir
		ModelFile string `yaml:"modelFile"`

		// MeshFile is the reference mesh name inside Dir
		MeshFile string `yaml:"meshFile"`

		// TagArray is the reference mesh array holding anatomical tags
		TagArray string `yaml:"tagArray"`
	} `yaml:"input"`

	// Sampling parameters
	Sampling struct {
		// Count is the number of meshes to generate
		Count int `yaml:"count"`

		// Components is the number of leading modes to sample, 0 for all
		Components int `yaml:"components"`

		// Boundary is the maximum number of standard deviations per mode
		Boundary float64 `yaml:"boundary"`

		// Policy is one of none, clip or resample
		Policy sampling.Policy `yaml:"policy"`

		// Seed makes a run reproducible
		Seed uint64 `yaml:"seed"`
	} `yaml:"sampling"`

	// Output parameters
	Output struct {
		// Dir receives one mesh per instance
		Dir string `yaml:"dir"`

		// Format is vtk or stl
		Format string `yaml:"format"`

		// Workers is the number of instances reconstructed and written in parallel
		Workers int `yaml:"workers"`

		// CreateDir creates Dir when it does not exist
		CreateDir bool `yaml:"createDir"`

		// Manifest writes manifest.yaml describing the run
		Manifest bool `yaml:"manifest"`

		// Catalog records instances in an SQLite database inside Dir
		Catalog bool `yaml:"catalog"`

		// Plots writes coefficient histograms and a projection preview
		Plots bool `yaml:"plots"`
	} `yaml:"output"`

	// Logging parameters
	Logging struct {
		// Level is debug, info, warn or error
		Level string `yaml:"level"`

		// File enables a rotated log file in addition to the console
		File string `yaml:"file"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Input.Dir = "."
	cfg.Input.ModelFile = ssm.ModelFile
	cfg.Input.MeshFile = ssm.MeshFile
	cfg.Input.TagArray = ssm.DefaultTagArray

	cfg.Sampling.Count = 1
	cfg.Sampling.Components = 0
	cfg.Sampling.Boundary = 3.0
	cfg.Sampling.Policy = sampling.PolicyClip
	cfg.Sampling.Seed = 1

	cfg.Output.Dir = "synthetic"
	cfg.Output.Format = "vtk"
	cfg.Output.Workers = runtime.NumCPU()
	cfg.Output.Manifest = true

	cfg.Logging.Level = "info"

	return cfg
}

// Validate checks values that can be judged without loading the model.
func (c *Config) Validate() error {
	if c.Input.Dir == "" {
		return fmt.Errorf("input directory is required")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output directory is required")
	}
	if c.Sampling.Count < 0 {
		return fmt.Errorf("%w: count %d must not be negative", sampling.ErrInvalidParameter, c.Sampling.Count)
	}
	if c.Sampling.Components < 0 {
		return fmt.Errorf("%w: components %d must not be negative", sampling.ErrInvalidParameter, c.Sampling.Components)
	}
	if err := c.Bound().Validate(); err != nil {
		return err
	}
	switch c.Output.Format {
	case "vtk", "stl":
	default:
		return fmt.Errorf("unknown output format %q", c.Output.Format)
	}
	return nil
}

// Bound returns the sampling bound described by the configuration.
func (c *Config) Bound() sampling.Bound {
	return sampling.Bound{Max: c.Sampling.Boundary, Policy: c.Sampling.Policy}
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
