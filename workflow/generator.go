package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/JaimeStill/lectern/internal/prompts"
	"github.com/JaimeStill/lectern/pkg/formatting"
)

// Request is a single structured generation call. System carries the stage
// instructions, Prompt the task, and Schema the response specification the
// output must conform to. Index is the work unit the call belongs to, or -1
// for document-level calls.
type Request struct {
	Stage  prompts.Stage
	Index  int
	System string
	Prompt string
	Schema string
}

// Text joins the request into a single prompt for backends that accept one
// message.
func (r Request) Text() string {
	var sb strings.Builder
	sb.WriteString(r.System)
	sb.WriteString("\n\n")
	sb.WriteString(r.Prompt)
	if r.Schema != "" {
		sb.WriteString("\n\n")
		sb.WriteString(r.Schema)
	}
	return sb.String()
}

// Generator is the generative model capability used by every stage that
// needs a model call. Implementations return the raw response content and
// an error on timeout, upstream failure, or empty output.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// ComposeRequest resolves stage instructions and response specification
// from the prompt system and pairs them with the task prompt.
func ComposeRequest(
	ctx context.Context,
	ps prompts.System,
	stage prompts.Stage,
	index int,
	task string,
) (Request, error) {
	instructions, err := ps.Instructions(ctx, stage)
	if err != nil {
		return Request{}, fmt.Errorf("load instructions for %s: %w", stage, err)
	}

	spec, err := ps.Spec(ctx, stage)
	if err != nil {
		return Request{}, fmt.Errorf("load spec for %s: %w", stage, err)
	}

	return Request{
		Stage:  stage,
		Index:  index,
		System: instructions,
		Prompt: task,
		Schema: spec,
	}, nil
}

// invoke performs one call and decodes the response into T.
func invoke[T any](ctx context.Context, g Generator, req Request) (T, error) {
	var zero T

	content, err := g.Generate(ctx, req)
	if err != nil {
		return zero, fmt.Errorf("%s call: %w", req.Stage, err)
	}

	parsed, err := formatting.Parse[T](content)
	if err != nil {
		return zero, fmt.Errorf("%s response: %w", req.Stage, err)
	}

	return parsed, nil
}

// invokeWithRetry performs invoke under the policy's local retry loop.
func invokeWithRetry[T any](ctx context.Context, g Generator, p *Policy, req Request) (T, error) {
	return retry(ctx, p, p.CallAttempts, func(ctx context.Context) (T, error) {
		return invoke[T](ctx, g, req)
	})
}
