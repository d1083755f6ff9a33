package config

import (
	"fmt"
	"os"
	"time"
)

const (
	EnvSandboxBaseURL         = "ATELIER_SANDBOX_BASE_URL"
	EnvSandboxToken           = "ATELIER_SANDBOX_TOKEN"
	EnvSandboxWorkspaceDir    = "ATELIER_SANDBOX_WORKSPACE_DIR"
	EnvSandboxEnsureTimeout   = "ATELIER_SANDBOX_ENSURE_TIMEOUT"
	EnvSandboxTransferTimeout = "ATELIER_SANDBOX_TRANSFER_TIMEOUT"
)

// SandboxConfig holds connection parameters for the isolated-execution
// collaborator and per-operation timeout bounds.
type SandboxConfig struct {
	BaseURL         string `toml:"base_url"`
	Token           string `toml:"token"`
	WorkspaceDir    string `toml:"workspace_dir"`
	EnsureTimeout   string `toml:"ensure_timeout"`
	TransferTimeout string `toml:"transfer_timeout"`
}

// EnsureTimeoutDuration returns EnsureTimeout as a time.Duration.
func (c *SandboxConfig) EnsureTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.EnsureTimeout)
	return d
}

// TransferTimeoutDuration returns TransferTimeout as a time.Duration.
func (c *SandboxConfig) TransferTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.TransferTimeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *SandboxConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *SandboxConfig) Merge(overlay *SandboxConfig) {
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.Token != "" {
		c.Token = overlay.Token
	}
	if overlay.WorkspaceDir != "" {
		c.WorkspaceDir = overlay.WorkspaceDir
	}
	if overlay.EnsureTimeout != "" {
		c.EnsureTimeout = overlay.EnsureTimeout
	}
	if overlay.TransferTimeout != "" {
		c.TransferTimeout = overlay.TransferTimeout
	}
}

func (c *SandboxConfig) loadDefaults() {
	if c.WorkspaceDir == "" {
		c.WorkspaceDir = "workspace"
	}
	if c.EnsureTimeout == "" {
		c.EnsureTimeout = "2m"
	}
	if c.TransferTimeout == "" {
		c.TransferTimeout = "1m"
	}
}

func (c *SandboxConfig) loadEnv() {
	if v := os.Getenv(EnvSandboxBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvSandboxToken); v != "" {
		c.Token = v
	}
	if v := os.Getenv(EnvSandboxWorkspaceDir); v != "" {
		c.WorkspaceDir = v
	}
	if v := os.Getenv(EnvSandboxEnsureTimeout); v != "" {
		c.EnsureTimeout = v
	}
	if v := os.Getenv(EnvSandboxTransferTimeout); v != "" {
		c.TransferTimeout = v
	}
}

func (c *SandboxConfig) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url required")
	}
	if _, err := time.ParseDuration(c.EnsureTimeout); err != nil {
		return fmt.Errorf("invalid ensure_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.TransferTimeout); err != nil {
		return fmt.Errorf("invalid transfer_timeout: %w", err)
	}
	return nil
}
