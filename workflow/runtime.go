package workflow

import (
	"log/slog"

	"github.com/JaimeStill/lectern/internal/prompts"
)

// Runtime bundles the dependencies that workflow nodes require.
// It is constructed by higher-level composition code; a nil Evaluator
// defaults to StructuralEvaluator chained ahead of a ModelEvaluator, and a
// nil Tokens counts with CountTokens.
type Runtime struct {
	Generator Generator
	Evaluator Evaluator
	Prompts   prompts.System
	Policy    Policy
	Logger    *slog.Logger
	Tokens    func(string) int
}

func (rt *Runtime) tokens() func(string) int {
	if rt.Tokens != nil {
		return rt.Tokens
	}
	return CountTokens
}

func (rt *Runtime) evaluator() Evaluator {
	if rt.Evaluator != nil {
		return rt.Evaluator
	}
	return ChainEvaluator{
		StructuralEvaluator{},
		&ModelEvaluator{Generator: rt.Generator, Prompts: rt.Prompts, Policy: rt.Policy},
	}
}

// withLogger returns a copy of rt whose Logger is never nil.
func (rt *Runtime) withLogger() *Runtime {
	run := *rt
	if run.Logger == nil {
		run.Logger = slog.New(slog.DiscardHandler)
	}
	return &run
}
