package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/JaimeStill/lectern/workflow"
)

// OpenAI generates through an OpenAI-compatible chat completions API. The
// request's system text and response specification form the system message.
type OpenAI struct {
	model  string
	client openai.Client
}

// NewOpenAI creates an OpenAI generator.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key missing")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai model required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if d := cfg.TimeoutDuration(); d > 0 {
		opts = append(opts, option.WithRequestTimeout(d))
	}

	return &OpenAI{model: cfg.Model, client: openai.NewClient(opts...)}, nil
}

// Generate implements workflow.Generator.
func (g *OpenAI) Generate(ctx context.Context, req workflow.Request) (string, error) {
	system := req.System
	if req.Schema != "" {
		system += "\n\n" + req.Schema
	}

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(req.Prompt),
		},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			err = &workflow.StatusError{StatusCode: apiErr.StatusCode, Err: err}
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
