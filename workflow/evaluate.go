package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/lectern/internal/prompts"
)

// Judgment is an evaluator's decision on one draft course.
type Judgment struct {
	Passed   bool   `json:"passed"`
	Feedback string `json:"feedback"`
}

// Evaluator decides whether a draft course is fit for expansion. An error
// means no judgment could be reached; the gate treats it as a failing verdict.
type Evaluator interface {
	Evaluate(ctx context.Context, topic TopicUnit, draft DraftCourse) (Judgment, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(ctx context.Context, topic TopicUnit, draft DraftCourse) (Judgment, error)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(ctx context.Context, topic TopicUnit, draft DraftCourse) (Judgment, error) {
	return f(ctx, topic, draft)
}

// ChainEvaluator runs evaluators in order and returns the first failing
// judgment. A draft passes only when every evaluator passes it.
type ChainEvaluator []Evaluator

func (c ChainEvaluator) Evaluate(ctx context.Context, topic TopicUnit, draft DraftCourse) (Judgment, error) {
	for _, e := range c {
		j, err := e.Evaluate(ctx, topic, draft)
		if err != nil {
			return Judgment{}, err
		}
		if !j.Passed {
			return j, nil
		}
	}
	return Judgment{Passed: true}, nil
}

// StructuralEvaluator checks structural completeness without a model call:
// a named and described course with at least one lesson, every lesson titled,
// and lesson numbers positive and unique.
type StructuralEvaluator struct{}

func (StructuralEvaluator) Evaluate(_ context.Context, _ TopicUnit, draft DraftCourse) (Judgment, error) {
	var problems []string

	if strings.TrimSpace(draft.CourseName) == "" {
		problems = append(problems, "course name is empty")
	}
	if strings.TrimSpace(draft.CourseDescription) == "" {
		problems = append(problems, "course description is empty")
	}
	if len(draft.Lessons) == 0 {
		problems = append(problems, "course has no lessons")
	}

	seen := make(map[int]bool, len(draft.Lessons))
	for i, l := range draft.Lessons {
		if strings.TrimSpace(l.Title) == "" {
			problems = append(problems, fmt.Sprintf("lesson %d has no title", i+1))
		}
		if l.Number < 1 {
			problems = append(problems, fmt.Sprintf("lesson %d has invalid number %d", i+1, l.Number))
		} else if seen[l.Number] {
			problems = append(problems, fmt.Sprintf("lesson number %d is repeated", l.Number))
		}
		seen[l.Number] = true
	}

	if len(problems) > 0 {
		return Judgment{Passed: false, Feedback: strings.Join(problems, "; ")}, nil
	}
	return Judgment{Passed: true}, nil
}

// ModelEvaluator asks the generator for a structured judgment on topical
// relevance, channel appropriateness, and correspondence between the course
// and its originating topic.
type ModelEvaluator struct {
	Generator Generator
	Prompts   prompts.System
	Policy    Policy
}

func (m *ModelEvaluator) Evaluate(ctx context.Context, topic TopicUnit, draft DraftCourse) (Judgment, error) {
	body, err := json.MarshalIndent(draft, "", "  ")
	if err != nil {
		return Judgment{}, fmt.Errorf("%w: encode draft: %w", ErrEvaluateFailed, err)
	}

	task := fmt.Sprintf(
		"Topic: %s\nTopic description: %s\n\nCourse under review:\n%s",
		topic.Topic, topic.Description, body,
	)

	req, err := ComposeRequest(ctx, m.Prompts, prompts.StageEvaluate, topic.Index, task)
	if err != nil {
		return Judgment{}, fmt.Errorf("%w: %w", ErrEvaluateFailed, err)
	}

	j, err := invokeWithRetry[Judgment](ctx, m.Generator, &m.Policy, req)
	if err != nil {
		return Judgment{}, fmt.Errorf("%w: %w", ErrEvaluateFailed, err)
	}

	if !j.Passed && strings.TrimSpace(j.Feedback) == "" {
		j.Feedback = "rejected without feedback"
	}
	return j, nil
}

// evaluateDrafts produces a verdict for every draft whose index is listed.
// Failure variants fail automatically with their reason as feedback. The
// returned verdicts are sorted by index.
func evaluateDrafts(
	ctx context.Context,
	rt *Runtime,
	drafts []DraftResult,
	indices []int,
) []EvaluationVerdict {
	byIndex := make(map[int]DraftResult, len(drafts))
	for _, d := range drafts {
		byIndex[d.Index] = d
	}

	evaluator := rt.evaluator()
	verdicts := make([]EvaluationVerdict, len(indices))

	g := new(errgroup.Group)
	g.SetLimit(workerCount(rt.Policy.EvaluateWorkers, len(indices)))

	for i, idx := range indices {
		d, ok := byIndex[idx]
		if !ok || !d.OK() {
			reason := ErrGenerateFailed.Error()
			if ok {
				reason = d.Failure
			}
			verdicts[i] = EvaluationVerdict{Index: idx, Passed: false, Feedback: reason}
			continue
		}

		g.Go(func() error {
			j, err := evaluator.Evaluate(ctx, d.Topic, *d.Draft)
			if err != nil {
				rt.Logger.WarnContext(ctx, "evaluation failed", "index", idx, "error", err)
				verdicts[i] = EvaluationVerdict{Index: idx, Passed: false, Feedback: err.Error()}
				return nil
			}
			verdicts[i] = EvaluationVerdict{Index: idx, Passed: j.Passed, Feedback: j.Feedback}
			return nil
		})
	}

	g.Wait()
	return verdicts
}
