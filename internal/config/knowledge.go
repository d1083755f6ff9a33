package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	EnvKnowledgeMaxTokens    = "ATELIER_KNOWLEDGE_MAX_TOKENS"
	EnvKnowledgeTokenDivisor = "ATELIER_KNOWLEDGE_TOKEN_DIVISOR"
)

// KnowledgeConfig holds context-packing parameters. TokenDivisor is the
// characters-per-token heuristic used when an entry has no precomputed
// estimate.
type KnowledgeConfig struct {
	MaxTokens    int `toml:"max_tokens"`
	TokenDivisor int `toml:"token_divisor"`
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *KnowledgeConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *KnowledgeConfig) Merge(overlay *KnowledgeConfig) {
	if overlay.MaxTokens != 0 {
		c.MaxTokens = overlay.MaxTokens
	}
	if overlay.TokenDivisor != 0 {
		c.TokenDivisor = overlay.TokenDivisor
	}
}

func (c *KnowledgeConfig) loadDefaults() {
	if c.MaxTokens == 0 {
		c.MaxTokens = 4000
	}
	if c.TokenDivisor == 0 {
		c.TokenDivisor = 4
	}
}

func (c *KnowledgeConfig) loadEnv() {
	if v := os.Getenv(EnvKnowledgeMaxTokens); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxTokens = n
		}
	}
	if v := os.Getenv(EnvKnowledgeTokenDivisor); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.TokenDivisor = n
		}
	}
}

func (c *KnowledgeConfig) validate() error {
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens cannot be negative")
	}
	if c.TokenDivisor < 1 {
		return fmt.Errorf("token_divisor must be positive")
	}
	return nil
}
