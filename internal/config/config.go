// Package config provides configuration management for sfhtools.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all sfhtools configuration.
type Config struct {
	Tool      ToolConfig      `yaml:"tool"`
	Grid      GridConfig      `yaml:"grid"`
	Paths     PathsConfig     `yaml:"paths"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Pars      ParsConfig      `yaml:"pars"`
	Plot      PlotConfig      `yaml:"plot"`

	// Workers bounds the number of concurrent calcsfh runs.
	Workers int `yaml:"workers"`
}

// ToolConfig names the fitting binary and its trailing arguments.
type ToolConfig struct {
	Binary  string   `yaml:"binary"`
	Args    []string `yaml:"args"`
	Timeout string   `yaml:"timeout"` // per run, e.g. "2h"; empty means none

	// Env is added to the environment of every run.
	Env map[string]string `yaml:"env,omitempty"`
}

// GridConfig describes the depth grid: offsets step by Step out to
// +/-MaxDelta magnitudes.
type GridConfig struct {
	Step     float64 `yaml:"step"`
	MaxDelta float64 `yaml:"max_delta"`
}

// PathsConfig holds input locations. Phot, Pars and Fake are relative to
// the galaxy directory; Resolution is relative to the working directory.
type PathsConfig struct {
	Phot       string `yaml:"phot"`
	Pars       string `yaml:"pars"`
	Fake       string `yaml:"fake"`
	Resolution string `yaml:"resolution"`
	TestDir    string `yaml:"test_dir"`
}

// WorkspaceConfig controls permissions on the test directory.
type WorkspaceConfig struct {
	DirMode        string `yaml:"dir_mode"` // octal, e.g. "0770"; empty leaves the mode alone
	RecursiveChmod bool   `yaml:"recursive_chmod"`
}

// ParsConfig describes the pars file layout.
type ParsConfig struct {
	HeaderLines  int `yaml:"header_lines"`
	TrailerLines int `yaml:"trailer_lines"`
}

// PlotConfig holds defaults for the SFH figure.
type PlotConfig struct {
	Out       string  `yaml:"out"`
	Width     string  `yaml:"width"`
	Height    string  `yaml:"height"`
	AvgMaxAge float64 `yaml:"avg_max_age"` // Gyr
	Burst     float64 `yaml:"burst"`
}

// Environment variables that override file values.
const (
	EnvCalcsfh = "SFHTOOLS_CALCSFH"
	EnvWorkers = "SFHTOOLS_WORKERS"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Tool: ToolConfig{
			Binary: "calcsfh",
			Args:   []string{"-Kroupa", "-PARSEC"},
		},
		Grid: GridConfig{
			Step:     0.05,
			MaxDelta: 0.25,
		},
		Paths: PathsConfig{
			Phot:       "input_data/phot",
			Pars:       "input_data/pars",
			Fake:       "input_data/fake",
			Resolution: "sfh_fullres",
			TestDir:    "calctests",
		},
		Workspace: WorkspaceConfig{
			DirMode: "0770",
		},
		Pars: ParsConfig{
			HeaderLines:  5,
			TrailerLines: 2,
		},
		Plot: PlotConfig{
			Out:       "sfh.png",
			Width:     "12in",
			Height:    "8in",
			AvgMaxAge: 6,
			Burst:     2,
		},
		Workers: runtime.NumCPU(),
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
			// Defaults.
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if bin := strings.TrimSpace(os.Getenv(EnvCalcsfh)); bin != "" {
		c.Tool.Binary = bin
	}
	if v := strings.TrimSpace(os.Getenv(EnvWorkers)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		c.Workers = n
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Tool.Binary) == "" {
		errs = append(errs, errors.New("tool.binary is required"))
	}
	if _, err := c.ToolTimeout(); err != nil {
		errs = append(errs, err)
	}
	if !(c.Grid.Step > 0) {
		errs = append(errs, fmt.Errorf("grid.step must be > 0 (got %v)", c.Grid.Step))
	}
	if c.Grid.MaxDelta < 0 {
		errs = append(errs, fmt.Errorf("grid.max_delta must be >= 0 (got %v)", c.Grid.MaxDelta))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be > 0 (got %d)", c.Workers))
	}
	for _, p := range []struct{ name, v string }{
		{"paths.phot", c.Paths.Phot},
		{"paths.pars", c.Paths.Pars},
		{"paths.fake", c.Paths.Fake},
		{"paths.resolution", c.Paths.Resolution},
		{"paths.test_dir", c.Paths.TestDir},
	} {
		if strings.TrimSpace(p.v) == "" {
			errs = append(errs, fmt.Errorf("%s is required", p.name))
		}
	}
	if _, err := c.DirMode(); err != nil {
		errs = append(errs, err)
	}
	if c.Pars.HeaderLines < 0 || c.Pars.TrailerLines < 0 {
		errs = append(errs, errors.New("pars line counts must be >= 0"))
	}
	if c.Plot.AvgMaxAge <= 0 {
		errs = append(errs, fmt.Errorf("plot.avg_max_age must be > 0 (got %v)", c.Plot.AvgMaxAge))
	}
	if c.Plot.Burst <= 0 {
		errs = append(errs, fmt.Errorf("plot.burst must be > 0 (got %v)", c.Plot.Burst))
	}
	return errors.Join(errs...)
}

// ToolTimeout parses Tool.Timeout. Empty means no limit.
func (c *Config) ToolTimeout() (time.Duration, error) {
	if strings.TrimSpace(c.Tool.Timeout) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Tool.Timeout)
	if err != nil {
		return 0, fmt.Errorf("tool.timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("tool.timeout must be >= 0 (got %s)", d)
	}
	return d, nil
}

// DirMode parses Workspace.DirMode as an octal permission. Empty means 0.
func (c *Config) DirMode() (os.FileMode, error) {
	s := strings.TrimSpace(c.Workspace.DirMode)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("workspace.dir_mode %q is not an octal mode: %w", s, err)
	}
	if v > 0o777 {
		return 0, fmt.Errorf("workspace.dir_mode %q has bits outside 0777", s)
	}
	return os.FileMode(v), nil
}
