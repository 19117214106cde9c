package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/JaimeStill/lectern/internal/generator"
	"github.com/JaimeStill/lectern/pkg/database"
	"github.com/JaimeStill/lectern/pkg/storage"
	"github.com/JaimeStill/lectern/workflow"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvLecternEnv             = "LECTERN_ENV"
	EnvLecternShutdownTimeout = "LECTERN_SHUTDOWN_TIMEOUT"
	EnvLecternVersion         = "LECTERN_VERSION"
	EnvLecternLogLevel        = "LECTERN_LOG_LEVEL"
	EnvLecternPromptOverrides = "LECTERN_PROMPT_OVERRIDES"
)

var databaseEnv = &database.Env{
	Host:            "LECTERN_DB_HOST",
	Port:            "LECTERN_DB_PORT",
	Name:            "LECTERN_DB_NAME",
	User:            "LECTERN_DB_USER",
	Password:        "LECTERN_DB_PASSWORD",
	SSLMode:         "LECTERN_DB_SSL_MODE",
	MaxOpenConns:    "LECTERN_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "LECTERN_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "LECTERN_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "LECTERN_DB_CONN_TIMEOUT",
	ApplicationName: "LECTERN_DB_APPLICATION_NAME",
}

var storageEnv = &storage.Env{
	Backend:          "LECTERN_STORAGE_BACKEND",
	ContainerName:    "LECTERN_STORAGE_CONTAINER_NAME",
	ConnectionString: "LECTERN_STORAGE_CONNECTION_STRING",
	AccountURL:       "LECTERN_STORAGE_ACCOUNT_URL",
	ExportPrefix:     "LECTERN_STORAGE_EXPORT_PREFIX",
}

var generatorEnv = &generator.Env{
	Backend:       "LECTERN_GENERATOR_BACKEND",
	OpenAIBaseURL: "LECTERN_OPENAI_BASE_URL",
	OpenAIAPIKey:  "LECTERN_OPENAI_API_KEY",
	OpenAIModel:   "LECTERN_OPENAI_MODEL",
}

var workflowEnv = &workflow.PolicyEnv{
	MaxRetries:       "LECTERN_WORKFLOW_MAX_RETRIES",
	GenerateWorkers:  "LECTERN_WORKFLOW_GENERATE_WORKERS",
	EvaluateWorkers:  "LECTERN_WORKFLOW_EVALUATE_WORKERS",
	ExpandWorkers:    "LECTERN_WORKFLOW_EXPAND_WORKERS",
	CallAttempts:     "LECTERN_WORKFLOW_CALL_ATTEMPTS",
	SegmentAttempts:  "LECTERN_WORKFLOW_SEGMENT_ATTEMPTS",
	Backoff:          "LECTERN_WORKFLOW_BACKOFF",
	TransientBackoff: "LECTERN_WORKFLOW_TRANSIENT_BACKOFF",
	ChunkTokens:      "LECTERN_WORKFLOW_CHUNK_TOKENS",
	MinSectionLength: "LECTERN_WORKFLOW_MIN_SECTION_LENGTH",
	ProgressBuffer:   "LECTERN_WORKFLOW_PROGRESS_BUFFER",
	RunTimeout:       "LECTERN_WORKFLOW_RUN_TIMEOUT",
}

// Config is the root configuration for Lectern.
type Config struct {
	Database        database.Config      `toml:"database"`
	Storage         storage.Config       `toml:"storage"`
	Agent           gaconfig.AgentConfig `toml:"agent"`
	Generator       generator.Config     `toml:"generator"`
	Workflow        workflow.Policy      `toml:"workflow"`
	Prompts         PromptsConfig        `toml:"prompts"`
	LogLevel        string               `toml:"log_level"`
	ShutdownTimeout string               `toml:"shutdown_timeout"`
	Version         string               `toml:"version"`
}

// PromptsConfig locates optional instruction overrides.
type PromptsConfig struct {
	Overrides string `toml:"overrides"`
}

// Env returns the LECTERN_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvLecternEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Level returns LogLevel as a slog.Level.
func (c *Config) Level() slog.Level {
	var l slog.Level
	_ = l.UnmarshalText([]byte(c.LogLevel))
	return l
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.LogLevel != "" {
		c.LogLevel = overlay.LogLevel
	}
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	if overlay.Prompts.Overrides != "" {
		c.Prompts.Overrides = overlay.Prompts.Overrides
	}
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.Agent.Merge(&overlay.Agent)
	c.Generator.Merge(&overlay.Generator)
	c.Workflow.Merge(&overlay.Workflow)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Generator.Finalize(generatorEnv); err != nil {
		return fmt.Errorf("generator: %w", err)
	}
	if c.Generator.Backend == generator.BackendAgent {
		if err := FinalizeAgent(&c.Agent); err != nil {
			return fmt.Errorf("agent: %w", err)
		}
	}
	if err := c.Workflow.Finalize(workflowEnv); err != nil {
		return fmt.Errorf("workflow: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvLecternLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvLecternShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvLecternVersion); v != "" {
		c.Version = v
	}
	if v := os.Getenv(EnvLecternPromptOverrides); v != "" {
		c.Prompts.Overrides = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvLecternEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
