package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/JaimeStill/lectern/internal/config"
)

const baseConfig = `
log_level = "debug"
shutdown_timeout = "10s"

[database]
user = "lectern"
password = "lectern"

[storage]
backend = "memory"

[generator]
backend = "openai"

[generator.openai]
api_key = "test-key"
model = "gpt-test"

[workflow]
max_retries = 5
generate_workers = 2

[prompts]
overrides = "prompts.yaml"
`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_BaseFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, config.BaseConfigFile, baseConfig)
	t.Chdir(dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Level() != slog.LevelDebug {
		t.Errorf("Level = %v, want debug", cfg.Level())
	}
	if cfg.ShutdownTimeoutDuration().Seconds() != 10 {
		t.Errorf("ShutdownTimeout = %s", cfg.ShutdownTimeout)
	}
	if cfg.Workflow.MaxRetries != 5 || cfg.Workflow.GenerateWorkers != 2 {
		t.Errorf("workflow = %+v", cfg.Workflow)
	}
	if cfg.Workflow.CallAttempts == 0 || cfg.Workflow.RunTimeout == "" {
		t.Errorf("workflow defaults not applied: %+v", cfg.Workflow)
	}
	if cfg.Storage.ExportPrefix != "course-sets" {
		t.Errorf("ExportPrefix = %q", cfg.Storage.ExportPrefix)
	}
	if cfg.Prompts.Overrides != "prompts.yaml" {
		t.Errorf("Overrides = %q", cfg.Prompts.Overrides)
	}
	if cfg.Env() != "local" {
		t.Errorf("Env = %q", cfg.Env())
	}
}

func TestLoad_Overlay(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, config.BaseConfigFile, baseConfig)
	writeFile(t, dir, "config.staging.toml", `
log_level = "warn"

[workflow]
max_retries = 2
`)
	t.Chdir(dir)
	t.Setenv(config.EnvLecternEnv, "staging")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Level() != slog.LevelWarn {
		t.Errorf("Level = %v, want warn", cfg.Level())
	}
	if cfg.Workflow.MaxRetries != 2 || cfg.Workflow.GenerateWorkers != 2 {
		t.Errorf("overlay not merged: %+v", cfg.Workflow)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, config.BaseConfigFile, baseConfig)
	t.Chdir(dir)

	t.Setenv("LECTERN_DB_HOST", "db.internal")
	t.Setenv("LECTERN_OPENAI_MODEL", "gpt-override")
	t.Setenv("LECTERN_WORKFLOW_MAX_RETRIES", "1")
	t.Setenv(config.EnvLecternShutdownTimeout, "5s")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Host != "db.internal" {
		t.Errorf("Host = %q", cfg.Database.Host)
	}
	if cfg.Generator.OpenAI.Model != "gpt-override" {
		t.Errorf("Model = %q", cfg.Generator.OpenAI.Model)
	}
	if cfg.Workflow.MaxRetries != 1 {
		t.Errorf("MaxRetries = %d", cfg.Workflow.MaxRetries)
	}
	if cfg.ShutdownTimeout != "5s" {
		t.Errorf("ShutdownTimeout = %q", cfg.ShutdownTimeout)
	}
}

func TestLoad_AgentBackend(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, config.BaseConfigFile, `
[database]
user = "lectern"

[storage]
backend = "memory"
`)
	t.Chdir(dir)

	t.Setenv(config.EnvAgentName, "lectern")
	t.Setenv(config.EnvAgentProviderName, "ollama")
	t.Setenv(config.EnvAgentModelName, "llama3")
	t.Setenv(config.EnvAgentToken, "secret")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Generator.Backend != "agent" {
		t.Errorf("Backend = %q", cfg.Generator.Backend)
	}
	if cfg.Agent.Provider.Name != "ollama" || cfg.Agent.Model.Name != "llama3" {
		t.Errorf("agent = %+v", cfg.Agent)
	}
	if cfg.Agent.Provider.Options["token"] != "secret" {
		t.Errorf("token option = %v", cfg.Agent.Provider.Options["token"])
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad shutdown timeout", baseConfig},
		{"bad log level", `
log_level = "loud"

[database]
user = "lectern"

[storage]
backend = "memory"

[generator]
backend = "openai"

[generator.openai]
api_key = "k"
model = "m"
`},
		{"openai without key", `
[database]
user = "lectern"

[storage]
backend = "memory"

[generator]
backend = "openai"
`},
		{"malformed toml", `log_level = `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, config.BaseConfigFile, tt.content)
			t.Chdir(dir)
			if tt.name == "bad shutdown timeout" {
				t.Setenv(config.EnvLecternShutdownTimeout, "eventually")
			}

			if _, err := config.Load(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
