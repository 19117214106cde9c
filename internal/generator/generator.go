// Package generator adapts model backends to the workflow Generator
// contract. Each backend sends the request's system text and prompt to a
// chat model and returns the raw completion for the workflow to parse.
package generator

import (
	"errors"
	"fmt"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/JaimeStill/lectern/workflow"
)

// ErrEmptyResponse indicates the model returned no content.
var ErrEmptyResponse = errors.New("model returned an empty response")

// New builds the generator selected by cfg.Backend.
func New(cfg *Config, agent gaconfig.AgentConfig) (workflow.Generator, error) {
	switch cfg.Backend {
	case BackendAgent:
		return NewAgent(agent), nil
	case BackendOpenAI:
		return NewOpenAI(cfg.OpenAI)
	default:
		return nil, fmt.Errorf("unknown generator backend %q", cfg.Backend)
	}
}
