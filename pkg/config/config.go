// Package config loads the wxcrawl configuration from a YAML file and
// applies defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend selects the browser-automation implementation.
const (
	BackendCDP        = "cdp"
	BackendPlaywright = "playwright"
)

// Config is the root configuration for the crawler service.
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Crawl   CrawlConfig   `yaml:"crawl"`
	Output  OutputConfig  `yaml:"output"`
	Session SessionConfig `yaml:"session"`
	Batch   BatchConfig   `yaml:"batch"`
}

// BackendConfig selects and tunes the browser backend.
type BackendConfig struct {
	// Kind is "cdp" (default, locally driven Chrome) or "playwright"
	Kind      string `yaml:"kind"`
	Headless  bool   `yaml:"headless"`
	UserAgent string `yaml:"user_agent"`
}

// CrawlConfig carries the per-session crawl options.
type CrawlConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryBackoff      time.Duration `yaml:"retry_backoff"`
	DelayBetweenSteps time.Duration `yaml:"delay_between_steps"`
	SessionTimeout    time.Duration `yaml:"session_timeout"`
	CleanContent      bool          `yaml:"clean_content"`
	SaveImages        bool          `yaml:"save_images"`

	// URLPatterns restrict accepted crawl targets (glob syntax)
	URLPatterns []string `yaml:"url_patterns"`

	// AdKeywords override the default ad-stripping keyword list
	AdKeywords []string `yaml:"ad_keywords"`
}

// OutputConfig controls result persistence.
type OutputConfig struct {
	Dir string `yaml:"dir"`

	// Format is "markdown" (default) or "json"
	Format string `yaml:"format"`
}

// SessionConfig tunes the session state store.
type SessionConfig struct {
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	MaxAge          time.Duration `yaml:"max_age"`
}

// BatchConfig tunes batch-mode execution.
type BatchConfig struct {
	Concurrency int           `yaml:"concurrency"`
	GroupDelay  time.Duration `yaml:"group_delay"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			Kind:     BackendCDP,
			Headless: true,
		},
		Crawl: CrawlConfig{
			Timeout:           30 * time.Second,
			RetryAttempts:     3,
			RetryBackoff:      time.Second,
			DelayBetweenSteps: time.Second,
			CleanContent:      true,
			SaveImages:        true,
		},
		Output: OutputConfig{
			Dir:    "output",
			Format: "markdown",
		},
		Session: SessionConfig{
			CleanupInterval: time.Hour,
			MaxAge:          24 * time.Hour,
		},
		Batch: BatchConfig{
			Concurrency: 2,
			GroupDelay:  3 * time.Second,
		},
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the crawler cannot run with.
func (c *Config) Validate() error {
	switch c.Backend.Kind {
	case BackendCDP, BackendPlaywright:
	default:
		return fmt.Errorf("unknown backend kind %q", c.Backend.Kind)
	}

	switch c.Output.Format {
	case "markdown", "json":
	default:
		return fmt.Errorf("unknown output format %q", c.Output.Format)
	}

	if c.Crawl.RetryAttempts < 1 {
		return fmt.Errorf("retry_attempts must be at least 1")
	}
	if c.Batch.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	return nil
}
