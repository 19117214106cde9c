package prompts

import "errors"

// Domain errors for prompt operations.
var (
	ErrInvalidStage = errors.New("stage must be segment, classify, topics, generate, evaluate, or expand")
	ErrEmptyPrompt  = errors.New("prompt override must not be empty")
)
