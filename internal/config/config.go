// Package config provides configuration management for the question ETL.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"qbank/internal/irt"
)

// Configuration validation errors.
var (
	ErrInvalidMaxAttempts       = errors.New("download.max_attempts must be at least 1")
	ErrInvalidInitialDelay      = errors.New("download.initial_delay_ms must be non-negative")
	ErrInvalidBackoffMultiplier = errors.New("download.backoff_multiplier must be >= 1.0")
	ErrInvalidTimeout           = errors.New("download.timeout_sec must be at least 1")
	ErrInvalidMinBytes          = errors.New("download.min_bytes must be non-negative")
	ErrMissingCacheDir          = errors.New("pipeline.cache_dir is required")
	ErrMissingOutputDir         = errors.New("pipeline.output_dir is required")
	ErrInvalidConcurrency       = errors.New("pipeline.concurrency must be at least 1")
	ErrInvalidMinCacheBytes     = errors.New("pipeline.min_cache_bytes must be non-negative")
	ErrInvalidDriver            = errors.New("database.driver must be 'sqlite' or 'postgres'")
	ErrInvalidLogLevel          = errors.New("logging.level must be one of: debug, info, warn, error")
)

// Config represents the complete ETL configuration.
type Config struct {
	Sources  map[string]SourceConfig `yaml:"sources"`
	Pipeline PipelineConfig          `yaml:"pipeline"`
	Logging  LoggingConfig           `yaml:"logging"`
	Database DatabaseConfig          `yaml:"database"`
	Download RetryPolicy             `yaml:"download"`
	IRT      irt.Config              `yaml:"irt"`
}

// PipelineConfig controls where artifacts live and how many plugins run at once.
type PipelineConfig struct {
	CacheDir      string `yaml:"cache_dir"`
	OutputDir     string `yaml:"output_dir"`
	Concurrency   int    `yaml:"concurrency"`
	MinCacheBytes int64  `yaml:"min_cache_bytes"`
}

// RetryPolicy defines download retry behavior.
type RetryPolicy struct {
	UserAgent         string  `yaml:"user_agent"`
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	TimeoutSec        int     `yaml:"timeout_sec"`
	MinBytes          int64   `yaml:"min_bytes"`
}

// DatabaseConfig points at the store rendered scripts are applied to.
type DatabaseConfig struct {
	Driver      string `yaml:"driver"`
	DSN         string `yaml:"dsn"`
	ApplyOnLoad bool   `yaml:"apply_on_load"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SourceConfig carries per-plugin settings. A plugin without an entry runs with defaults.
type SourceConfig struct {
	BaseURL       string   `yaml:"base_url"`
	Mirrors       []string `yaml:"mirrors"`
	LocalDir      string   `yaml:"local_dir"`
	EmpiricalFile string   `yaml:"empirical_file"`
	OverridesFile string   `yaml:"overrides_file"`
	Years         []int    `yaml:"years"`
	Disabled      bool     `yaml:"disabled"`
}

// Default returns a fully specified configuration.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			CacheDir:      ".cache/qbank",
			OutputDir:     "output",
			Concurrency:   4,
			MinCacheBytes: 1024,
		},
		Download: RetryPolicy{
			UserAgent:         "qbank-etl/1.0",
			MaxAttempts:       3,
			InitialDelayMs:    1000,
			MaxDelayMs:        30000,
			BackoffMultiplier: 2.0,
			TimeoutSec:        60,
			MinBytes:          1024,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "file:qbank.db?mode=rwc&_pragma=busy_timeout(5000)",
		},
		Logging: LoggingConfig{Level: "info"},
		Sources: map[string]SourceConfig{},
		IRT:     irt.DefaultConfig(),
	}
}

// LoadConfig decodes a YAML file over the defaults, so absent keys keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.IRT.MergeInteractions(irt.DefaultConfig())

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves configuration to YAML file.
func (c *Config) SaveConfig(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Pipeline.CacheDir == "" {
		return ErrMissingCacheDir
	}

	if c.Pipeline.OutputDir == "" {
		return ErrMissingOutputDir
	}

	if c.Pipeline.Concurrency < 1 {
		return ErrInvalidConcurrency
	}

	if c.Pipeline.MinCacheBytes < 0 {
		return ErrInvalidMinCacheBytes
	}

	if c.Download.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if c.Download.InitialDelayMs < 0 {
		return ErrInvalidInitialDelay
	}

	if c.Download.BackoffMultiplier < 1.0 {
		return ErrInvalidBackoffMultiplier
	}

	if c.Download.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	if c.Download.MinBytes < 0 {
		return ErrInvalidMinBytes
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return ErrInvalidDriver
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	if err := c.IRT.Validate(); err != nil {
		return err
	}

	return nil
}

// Source returns the settings for a plugin id.
func (c *Config) Source(id string) SourceConfig {
	return c.Sources[id]
}

// CacheDirFor returns the flat cache directory owned by a plugin.
func (c *Config) CacheDirFor(pluginID string) string {
	return filepath.Join(c.Pipeline.CacheDir, pluginID)
}

// GetRetryDelay returns the wait after a failed attempt: initial * multiplier^(attempt-1), capped at max_delay_ms.
func (rp *RetryPolicy) GetRetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}

	delayMs := float64(rp.InitialDelayMs)
	for i := 1; i < attempt; i++ {
		delayMs *= rp.BackoffMultiplier
	}

	if rp.MaxDelayMs > 0 && delayMs > float64(rp.MaxDelayMs) {
		delayMs = float64(rp.MaxDelayMs)
	}

	return time.Duration(delayMs) * time.Millisecond
}

// GetTimeout returns the per-request timeout.
func (rp *RetryPolicy) GetTimeout() time.Duration {
	return time.Duration(rp.TimeoutSec) * time.Second
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Cache: %s, Output: %s, Concurrency: %d, MaxAttempts: %d, DB: %s}",
		c.Pipeline.CacheDir,
		c.Pipeline.OutputDir,
		c.Pipeline.Concurrency,
		c.Download.MaxAttempts,
		c.Database.Driver,
	)
}
