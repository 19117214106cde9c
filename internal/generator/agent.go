package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/JaimeStill/go-agents/pkg/agent"
	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/JaimeStill/lectern/workflow"
)

// Agent generates through a go-agents agent. A fresh agent is created per
// call so concurrent workers never share one.
type Agent struct {
	cfg gaconfig.AgentConfig
}

// NewAgent creates an Agent generator from a finalized agent configuration.
func NewAgent(cfg gaconfig.AgentConfig) *Agent {
	return &Agent{cfg: cfg}
}

// Generate implements workflow.Generator.
func (g *Agent) Generate(ctx context.Context, req workflow.Request) (string, error) {
	cfg := g.cfg
	a, err := agent.New(&cfg)
	if err != nil {
		return "", fmt.Errorf("create agent: %w", err)
	}

	resp, err := a.Chat(ctx, req.Text())
	if err != nil {
		return "", fmt.Errorf("chat call: %w", err)
	}

	content := resp.Content()
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
