package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvAssemblyFetchTimeout = "ATELIER_ASSEMBLY_FETCH_TIMEOUT"
	EnvAssemblyFetchWorkers = "ATELIER_ASSEMBLY_FETCH_WORKERS"
)

// AssemblyConfig bounds stored-file resolution during context assembly.
type AssemblyConfig struct {
	FetchTimeout string `toml:"fetch_timeout"`
	FetchWorkers int    `toml:"fetch_workers"`
}

// FetchTimeoutDuration returns FetchTimeout as a time.Duration.
func (c *AssemblyConfig) FetchTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.FetchTimeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *AssemblyConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *AssemblyConfig) Merge(overlay *AssemblyConfig) {
	if overlay.FetchTimeout != "" {
		c.FetchTimeout = overlay.FetchTimeout
	}
	if overlay.FetchWorkers != 0 {
		c.FetchWorkers = overlay.FetchWorkers
	}
}

func (c *AssemblyConfig) loadDefaults() {
	if c.FetchTimeout == "" {
		c.FetchTimeout = "30s"
	}
	if c.FetchWorkers == 0 {
		c.FetchWorkers = 4
	}
}

func (c *AssemblyConfig) loadEnv() {
	if v := os.Getenv(EnvAssemblyFetchTimeout); v != "" {
		c.FetchTimeout = v
	}
	if v := os.Getenv(EnvAssemblyFetchWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.FetchWorkers = n
		}
	}
}

func (c *AssemblyConfig) validate() error {
	if _, err := time.ParseDuration(c.FetchTimeout); err != nil {
		return fmt.Errorf("invalid fetch_timeout: %w", err)
	}
	if c.FetchWorkers < 1 {
		return fmt.Errorf("fetch_workers must be positive")
	}
	return nil
}
