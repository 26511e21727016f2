package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"site-auditor/pkg/parse"
)

// Config holds all tunables of one audit invocation. There is no process-wide
// mutable configuration: a Config is built once (defaults, file, flags) and
// passed into the pipeline by value of reference, never changed mid-run.
type Config struct {
	UserAgent string `yaml:"user_agent,omitempty"`

	// Crawl budgets. A crawl stops expanding when any of them is exhausted;
	// exhaustion is a normal termination, not an error.
	MaxPages     int           `yaml:"max_pages,omitempty"`
	MaxDepth     int           `yaml:"max_depth,omitempty"`
	MaxCrawlTime time.Duration `yaml:"max_crawl_time,omitempty"`
	Concurrency  int           `yaml:"concurrency,omitempty"`

	// Per-request fetch behavior.
	RequestTimeout    time.Duration `yaml:"request_timeout,omitempty"`
	MaxRetries        int           `yaml:"max_retries,omitempty"`
	InitialRetryDelay time.Duration `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay     time.Duration `yaml:"max_retry_delay,omitempty"`

	// Check phase.
	CheckTimeout time.Duration `yaml:"check_timeout,omitempty"`
	ProbeTimeout time.Duration `yaml:"probe_timeout,omitempty"`

	// Link verification.
	LinkSampleSize int           `yaml:"link_sample_size,omitempty"`
	LinkBatchSize  int           `yaml:"link_batch_size,omitempty"`
	LinkBatchPause time.Duration `yaml:"link_batch_pause,omitempty"`

	// SafeMode forces the plain HTTP renderer even when Chrome is configured.
	SafeMode bool `yaml:"safe_mode,omitempty"`

	// ScoreWhitelist lists domains whose final score is forced to 100.
	// Matching is by base domain, so "example.com" also covers
	// "www.example.com".
	ScoreWhitelist []string `yaml:"score_whitelist,omitempty"`

	Chrome ChromeSettings `yaml:"chrome,omitempty"`

	// StateDir is where the badger-backed report store keeps its files.
	StateDir string `yaml:"state_dir,omitempty"`
}

// ChromeSettings configures the optional headless renderer.
type ChromeSettings struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	Path     string `yaml:"path,omitempty"`
	Headless *bool  `yaml:"headless,omitempty"` // nil = true
}

// HeadlessEnabled resolves the tri-state headless flag.
func (c ChromeSettings) HeadlessEnabled() bool {
	if c.Headless == nil {
		return true
	}
	return *c.Headless
}

// Default returns the stock configuration used when no file is given.
func Default() *Config {
	return &Config{
		UserAgent:         "SiteAuditBot/1.0 (+https://site-auditor.dev/bot)",
		MaxPages:          25,
		MaxDepth:          2,
		MaxCrawlTime:      3 * time.Minute,
		Concurrency:       4,
		RequestTimeout:    12 * time.Second,
		MaxRetries:        2,
		InitialRetryDelay: 500 * time.Millisecond,
		MaxRetryDelay:     5 * time.Second,
		CheckTimeout:      60 * time.Second,
		ProbeTimeout:      5 * time.Second,
		LinkSampleSize:    15,
		LinkBatchSize:     3,
		LinkBatchPause:    250 * time.Millisecond,
		StateDir:          "./auditor_state",
	}
}

// Load reads a YAML config file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}
	return cfg, nil
}

// IsWhitelisted reports whether a hostname falls under any whitelisted
// domain (by base-domain comparison).
func (c *Config) IsWhitelisted(host string) bool {
	for _, domain := range c.ScoreWhitelist {
		if parse.SameBaseDomain(host, domain) {
			return true
		}
	}
	return false
}
