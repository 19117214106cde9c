// Package prompts provides the per-stage instructions and response
// specifications used by the course generation workflow. Instructions may be
// overridden per stage from a YAML file; specifications are fixed because the
// workflow decodes responses against them.
package prompts

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// System resolves prompt text for workflow stages.
type System interface {
	Instructions(ctx context.Context, stage Stage) (string, error)
	Spec(ctx context.Context, stage Stage) (string, error)
}

type system struct {
	overrides map[Stage]string
}

// New creates a prompt system. Stages present in overrides replace the
// default instructions; a nil map yields the defaults only.
func New(overrides map[Stage]string) System {
	return &system{overrides: overrides}
}

func (s *system) Instructions(_ context.Context, stage Stage) (string, error) {
	if text, ok := s.overrides[stage]; ok {
		return text, nil
	}
	return Instructions(stage)
}

func (s *system) Spec(_ context.Context, stage Stage) (string, error) {
	return Spec(stage)
}

// LoadOverrides reads a YAML document mapping stage names to instruction text:
//
//	generate: |
//	  You are ...
//
// Returns ErrInvalidStage for unknown keys and ErrEmptyPrompt for blank values.
func LoadOverrides(path string) (map[Stage]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt overrides: %w", err)
	}
	return ParseOverrides(data)
}

// ParseOverrides decodes YAML override content. See LoadOverrides.
func ParseOverrides(data []byte) (map[Stage]string, error) {
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse prompt overrides: %w", err)
	}

	overrides := make(map[Stage]string, len(raw))
	for key, text := range raw {
		stage, err := ParseStage(key)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", key, err)
		}
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%q: %w", key, ErrEmptyPrompt)
		}
		overrides[stage] = strings.TrimSpace(text)
	}

	return overrides, nil
}
