package generator

import (
	"fmt"
	"os"
	"time"
)

// Backend names accepted by Config.Backend.
const (
	BackendAgent  = "agent"
	BackendOpenAI = "openai"
)

// Config selects and parameterizes the model backend. The agent backend is
// configured through the separate go-agents agent section.
type Config struct {
	Backend string       `toml:"backend"`
	OpenAI  OpenAIConfig `toml:"openai"`
}

// OpenAIConfig holds parameters for OpenAI-compatible chat completion APIs.
type OpenAIConfig struct {
	BaseURL    string `toml:"base_url"`
	APIKey     string `toml:"api_key"`
	Model      string `toml:"model"`
	Timeout    string `toml:"timeout"`
	MaxRetries int    `toml:"max_retries"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Backend       string
	OpenAIBaseURL string
	OpenAIAPIKey  string
	OpenAIModel   string
}

// TimeoutDuration returns the per-call timeout, zero when unset.
func (c *OpenAIConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Backend != "" {
		c.Backend = overlay.Backend
	}
	if overlay.OpenAI.BaseURL != "" {
		c.OpenAI.BaseURL = overlay.OpenAI.BaseURL
	}
	if overlay.OpenAI.APIKey != "" {
		c.OpenAI.APIKey = overlay.OpenAI.APIKey
	}
	if overlay.OpenAI.Model != "" {
		c.OpenAI.Model = overlay.OpenAI.Model
	}
	if overlay.OpenAI.Timeout != "" {
		c.OpenAI.Timeout = overlay.OpenAI.Timeout
	}
	if overlay.OpenAI.MaxRetries != 0 {
		c.OpenAI.MaxRetries = overlay.OpenAI.MaxRetries
	}
}

func (c *Config) loadDefaults() {
	if c.Backend == "" {
		c.Backend = BackendAgent
	}
	if c.OpenAI.Timeout == "" {
		c.OpenAI.Timeout = "2m"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Backend != "" {
		if v := os.Getenv(env.Backend); v != "" {
			c.Backend = v
		}
	}
	if env.OpenAIBaseURL != "" {
		if v := os.Getenv(env.OpenAIBaseURL); v != "" {
			c.OpenAI.BaseURL = v
		}
	}
	if env.OpenAIAPIKey != "" {
		if v := os.Getenv(env.OpenAIAPIKey); v != "" {
			c.OpenAI.APIKey = v
		}
	}
	if env.OpenAIModel != "" {
		if v := os.Getenv(env.OpenAIModel); v != "" {
			c.OpenAI.Model = v
		}
	}
}

func (c *Config) validate() error {
	switch c.Backend {
	case BackendAgent:
		return nil
	case BackendOpenAI:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}

	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai api_key required")
	}
	if c.OpenAI.Model == "" {
		return fmt.Errorf("openai model required")
	}
	if _, err := time.ParseDuration(c.OpenAI.Timeout); err != nil {
		return fmt.Errorf("invalid openai timeout: %w", err)
	}
	if c.OpenAI.MaxRetries < 0 {
		return fmt.Errorf("openai max_retries must not be negative")
	}
	return nil
}
