package config

import (
	"fmt"
	"os"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
)

const (
	EnvAgentName         = "LECTERN_AGENT_NAME"
	EnvAgentProviderName = "LECTERN_AGENT_PROVIDER_NAME"
	EnvAgentBaseURL      = "LECTERN_AGENT_BASE_URL"
	EnvAgentToken        = "LECTERN_AGENT_TOKEN"
	EnvAgentDeployment   = "LECTERN_AGENT_DEPLOYMENT"
	EnvAgentAPIVersion   = "LECTERN_AGENT_API_VERSION"
	EnvAgentAuthType     = "LECTERN_AGENT_AUTH_TYPE"
	EnvAgentModelName    = "LECTERN_AGENT_MODEL_NAME"
)

// provider option keys populated from the environment
var agentOptionEnv = map[string]string{
	EnvAgentToken:      "token",
	EnvAgentDeployment: "deployment",
	EnvAgentAPIVersion: "api_version",
	EnvAgentAuthType:   "auth_type",
}

// FinalizeAgent layers a go-agents AgentConfig over DefaultAgentConfig,
// applies LECTERN_AGENT_* overrides, and validates that a provider and
// model are named.
func FinalizeAgent(c *gaconfig.AgentConfig) error {
	defaults := gaconfig.DefaultAgentConfig()
	defaults.Merge(c)
	*c = defaults

	if c.Provider == nil {
		c.Provider = &gaconfig.ProviderConfig{}
	}
	if c.Provider.Options == nil {
		c.Provider.Options = make(map[string]any)
	}
	if c.Model == nil {
		c.Model = &gaconfig.ModelConfig{}
	}

	if v := os.Getenv(EnvAgentName); v != "" {
		c.Name = v
	}
	if v := os.Getenv(EnvAgentProviderName); v != "" {
		c.Provider.Name = v
	}
	if v := os.Getenv(EnvAgentBaseURL); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv(EnvAgentModelName); v != "" {
		c.Model.Name = v
	}
	for env, key := range agentOptionEnv {
		if v := os.Getenv(env); v != "" {
			c.Provider.Options[key] = v
		}
	}

	switch {
	case c.Name == "":
		return fmt.Errorf("name required")
	case c.Provider.Name == "":
		return fmt.Errorf("provider name required")
	case c.Model.Name == "":
		return fmt.Errorf("model name required")
	}
	return nil
}
