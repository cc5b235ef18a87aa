package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSuffix is the marker Maven leaves behind after a failed download
const DefaultSuffix = ".lastUpdated"

type CleanCfg struct {
	Roots          []string `yaml:"roots" json:"roots"`
	Suffix         string   `yaml:"suffix" json:"suffix"`
	DryRun         bool     `yaml:"dry_run" json:"dry_run"`
	KeepRoot       bool     `yaml:"keep_root" json:"keep_root"`             // Never remove the root directory itself
	ProtectedPaths []string `yaml:"protected_paths" json:"protected_paths"` // Added to the built-in protected list
}

type PrometheusCfg struct {
	Port int `yaml:"port" json:"port"` // 0 disables the metrics server
}

type LoggingCfg struct {
	Dir          string `yaml:"dir" json:"dir"`                     // Empty means stdout only
	RotationDays int    `yaml:"rotation_days" json:"rotation_days"` // Days to keep logs before rotation
}

type ResourceLimits struct {
	MaxCPUPercent float64 `yaml:"max_cpu_percent" json:"max_cpu_percent"` // 0 disables throttling
}

type Config struct {
	Clean           CleanCfg       `yaml:"clean" json:"clean"`
	IntervalMinutes int            `yaml:"interval_minutes" json:"interval_minutes"` // 0 runs a single sweep
	Prometheus      PrometheusCfg  `yaml:"prometheus" json:"prometheus"`
	Logging         LoggingCfg     `yaml:"logging" json:"logging"`
	ResourceLimits  ResourceLimits `yaml:"resource_limits" json:"resource_limits"`
	DatabasePath    string         `yaml:"database_path" json:"database_path"` // Empty disables deletion history
}

var (
	ErrNoRoots         = errors.New("configuration must specify clean.roots")
	ErrInvalidPath     = errors.New("path must be absolute")
	ErrEmptySuffix     = errors.New("clean.suffix cannot be blank")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrInvalidCPULimit = errors.New("resource_limits.max_cpu_percent must be below 100")
)

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, err
	}
	if err := cfg.validateAndDefault(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// New builds a validated config for an ad-hoc sweep of the given roots
func New(roots []string, suffix string) (*Config, error) {
	cfg := &Config{Clean: CleanCfg{Roots: roots, Suffix: suffix}}
	if err := cfg.validateAndDefault(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

// Validate re-runs validation and defaulting after callers override fields
func (c *Config) Validate() error {
	return c.validateAndDefault()
}

func (c *Config) validateAndDefault() error {
	if len(c.Clean.Roots) == 0 {
		return ErrNoRoots
	}

	if c.Clean.Suffix == "" {
		c.Clean.Suffix = DefaultSuffix
	}
	if strings.TrimSpace(c.Clean.Suffix) == "" {
		return ErrEmptySuffix
	}

	if c.IntervalMinutes < 0 {
		return fmt.Errorf("interval_minutes: %w", ErrNegativeValue)
	}
	if c.Prometheus.Port < 0 {
		return fmt.Errorf("prometheus.port: %w", ErrNegativeValue)
	}

	// Set defaults for logging
	if c.Logging.RotationDays <= 0 {
		c.Logging.RotationDays = 30
	}
	if c.Logging.Dir != "" {
		dir, err := cleanAbsolute(c.Logging.Dir)
		if err != nil {
			return fmt.Errorf("logging.dir: %w", err)
		}
		c.Logging.Dir = dir
	}

	if c.ResourceLimits.MaxCPUPercent < 0 {
		return fmt.Errorf("resource_limits.max_cpu_percent: %w", ErrNegativeValue)
	}
	if c.ResourceLimits.MaxCPUPercent >= 100 {
		return ErrInvalidCPULimit
	}

	cleaned := make([]string, 0, len(c.Clean.Roots))
	for _, p := range c.Clean.Roots {
		cp, err := cleanAbsolute(p)
		if err != nil {
			return err
		}
		cleaned = append(cleaned, cp)
	}
	c.Clean.Roots = cleaned

	for i, p := range c.Clean.ProtectedPaths {
		cp, err := cleanAbsolute(p)
		if err != nil {
			return fmt.Errorf("clean.protected_paths: %w", err)
		}
		c.Clean.ProtectedPaths[i] = cp
	}

	return nil
}

func cleanAbsolute(p string) (string, error) {
	if p == "" {
		return "", ErrInvalidPath
	}
	cp := filepath.Clean(p)
	if !filepath.IsAbs(cp) {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, p)
	}
	return cp, nil
}

// Interval returns the delay between sweeps; zero means run once
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

func (c *Config) PrometheusAddress() string {
	return fmt.Sprintf(":%d", c.Prometheus.Port)
}
