package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Backend.Kind != BackendCDP {
		t.Errorf("backend kind = %q, want %q", cfg.Backend.Kind, BackendCDP)
	}
	if !cfg.Backend.Headless {
		t.Error("headless should default to true")
	}
	if cfg.Crawl.Timeout != 30*time.Second {
		t.Errorf("timeout = %s", cfg.Crawl.Timeout)
	}
	if cfg.Crawl.RetryAttempts != 3 {
		t.Errorf("retry attempts = %d", cfg.Crawl.RetryAttempts)
	}
	if cfg.Output.Format != "markdown" {
		t.Errorf("format = %q", cfg.Output.Format)
	}
	if cfg.Batch.Concurrency != 2 {
		t.Errorf("concurrency = %d", cfg.Batch.Concurrency)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Backend.Kind != BackendCDP {
		t.Errorf("backend kind = %q", cfg.Backend.Kind)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
backend:
  kind: playwright
  headless: false
crawl:
  timeout: 45s
  retry_attempts: 5
  url_patterns:
    - "https://mp.weixin.qq.com/s/*"
output:
  dir: /tmp/crawls
  format: json
batch:
  concurrency: 4
  group_delay: 10s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Backend.Kind != BackendPlaywright {
		t.Errorf("backend kind = %q", cfg.Backend.Kind)
	}
	if cfg.Backend.Headless {
		t.Error("headless override lost")
	}
	if cfg.Crawl.Timeout != 45*time.Second {
		t.Errorf("timeout = %s", cfg.Crawl.Timeout)
	}
	if cfg.Crawl.RetryAttempts != 5 {
		t.Errorf("retry attempts = %d", cfg.Crawl.RetryAttempts)
	}
	if len(cfg.Crawl.URLPatterns) != 1 {
		t.Errorf("url patterns = %v", cfg.Crawl.URLPatterns)
	}
	if cfg.Output.Format != "json" {
		t.Errorf("format = %q", cfg.Output.Format)
	}
	if cfg.Batch.Concurrency != 4 {
		t.Errorf("concurrency = %d", cfg.Batch.Concurrency)
	}
	if cfg.Batch.GroupDelay != 10*time.Second {
		t.Errorf("group delay = %s", cfg.Batch.GroupDelay)
	}

	// Untouched sections keep their defaults.
	if cfg.Session.MaxAge != 24*time.Hour {
		t.Errorf("session max age = %s", cfg.Session.MaxAge)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "backend: [not: a: mapping")
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"playwright backend", func(c *Config) { c.Backend.Kind = BackendPlaywright }, false},
		{"unknown backend", func(c *Config) { c.Backend.Kind = "selenium" }, true},
		{"unknown format", func(c *Config) { c.Output.Format = "pdf" }, true},
		{"zero retries", func(c *Config) { c.Crawl.RetryAttempts = 0 }, true},
		{"zero concurrency", func(c *Config) { c.Batch.Concurrency = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
