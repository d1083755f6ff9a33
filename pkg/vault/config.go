package vault

import (
	"encoding/base64"
	"fmt"
	"os"
)

// Config holds the vault encryption key as a base64-encoded 32-byte value.
type Config struct {
	Key string `toml:"key"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Key string
}

// Finalize applies environment variable overrides and validation.
// The key has no default; a missing or malformed key is a startup failure.
func (c *Config) Finalize(env *Env) error {
	if env != nil && env.Key != "" {
		if v := os.Getenv(env.Key); v != "" {
			c.Key = v
		}
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Key != "" {
		c.Key = overlay.Key
	}
}

// KeyBytes decodes the configured key.
func (c *Config) KeyBytes() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(c.Key)
	if err != nil {
		return nil, fmt.Errorf("decode vault key: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("vault key must be %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

func (c *Config) validate() error {
	if c.Key == "" {
		return fmt.Errorf("vault key required")
	}
	_, err := c.KeyBytes()
	return err
}
