package config

import (
	"fmt"
	"time"
)

// Validate checks Config fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *Config) Validate() (warnings []string, err error) {
	if c.UserAgent == "" {
		warnings = append(warnings, "user_agent is empty, using default")
		c.UserAgent = Default().UserAgent
	}

	if c.MaxPages <= 0 {
		warnings = append(warnings, "max_pages should be > 0, defaulting to 25")
		c.MaxPages = 25
	}
	if c.MaxDepth < 0 {
		return warnings, fmt.Errorf("max_depth cannot be negative (got %d)", c.MaxDepth)
	}
	if c.MaxCrawlTime <= 0 {
		warnings = append(warnings, "max_crawl_time should be > 0, defaulting to 3m")
		c.MaxCrawlTime = 3 * time.Minute
	}
	if c.Concurrency <= 0 {
		warnings = append(warnings, "concurrency should be > 0, defaulting to 4")
		c.Concurrency = 4
	}

	if c.RequestTimeout <= 0 {
		warnings = append(warnings, "request_timeout should be > 0, defaulting to 12s")
		c.RequestTimeout = 12 * time.Second
	}
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}
	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 500 * time.Millisecond
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 5 * time.Second
		}
		if c.InitialRetryDelay > c.MaxRetryDelay {
			warnings = append(warnings, fmt.Sprintf(
				"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
				c.InitialRetryDelay, c.MaxRetryDelay))
			c.InitialRetryDelay = c.MaxRetryDelay
		}
	}

	if c.CheckTimeout <= 0 {
		c.CheckTimeout = 60 * time.Second
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 5 * time.Second
	}

	if c.LinkSampleSize <= 0 {
		c.LinkSampleSize = 15
	}
	if c.LinkBatchSize <= 0 {
		c.LinkBatchSize = 3
	}
	if c.LinkBatchSize > c.LinkSampleSize {
		warnings = append(warnings, fmt.Sprintf(
			"link_batch_size (%d) > link_sample_size (%d), clamping",
			c.LinkBatchSize, c.LinkSampleSize))
		c.LinkBatchSize = c.LinkSampleSize
	}
	if c.LinkBatchPause < 0 {
		warnings = append(warnings, "link_batch_pause cannot be negative, setting to 0")
		c.LinkBatchPause = 0
	}

	if c.StateDir == "" {
		c.StateDir = "./auditor_state"
	}

	return warnings, nil
}
