package workflow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	gaoconfig "github.com/JaimeStill/go-agents-orchestration/pkg/config"
	"github.com/JaimeStill/go-agents-orchestration/pkg/state"
)

// Input is the document handed to a workflow run. When Sections is non-empty
// segmentation is skipped and Content is ignored.
type Input struct {
	DocumentID uuid.UUID
	Content    string
	Sections   Sections
}

// Execute runs the course generation workflow for a single document. It
// builds the state graph (segment → extract → generate ⇄ evaluate → expand →
// aggregate), executes it, and extracts the Result from the final state.
// Fatal failures before topics exist are reported in Result.Error; the
// returned error is reserved for faults of the graph itself.
func Execute(ctx context.Context, rt *Runtime, in Input, sink ProgressSink) (*Result, error) {
	if rt == nil || rt.Generator == nil || rt.Prompts == nil {
		return nil, errors.New("workflow runtime requires a generator and prompts")
	}

	run := rt.withLogger()

	n := newNotifier(sink, run.Policy.ProgressBuffer, run.Logger)
	defer n.close()

	graph, err := buildGraph(run, n)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	initialState := state.New(nil)
	initialState = initialState.Set(KeyRunState, RunState{
		DocumentID: in.DocumentID,
		Content:    in.Content,
		Sections:   in.Sections,
		Verdicts:   map[int]EvaluationVerdict{},
		Stage:      StageStarting,
	})

	finalState, err := graph.Execute(ctx, initialState)
	if err != nil {
		n.emit(StageFailed, err.Error())
		return nil, fmt.Errorf("execute graph: %w", err)
	}

	return extractResult(finalState)
}

func buildGraph(rt *Runtime, n *notifier) (state.StateGraph, error) {
	cfg := gaoconfig.DefaultGraphConfig("lectern-course")
	cfg.Observer = "noop"

	graph, err := state.NewGraph(cfg)
	if err != nil {
		return nil, err
	}

	nodes := []struct {
		name string
		node state.StateNode
	}{
		{"segment", segmentNode(rt, n)},
		{"extract", extractNode(rt, n)},
		{"generate", generateNode(rt, n)},
		{"evaluate", evaluateNode(rt, n)},
		{"expand", expandNode(rt, n)},
		{"aggregate", aggregateNode(rt, n)},
	}
	for _, nd := range nodes {
		if err := graph.AddNode(nd.name, nd.node); err != nil {
			return nil, err
		}
	}

	retryEdge := shouldRetry(rt.Policy.MaxRetries)

	edges := []struct {
		from, to  string
		predicate func(state.State) bool
	}{
		// fatal failures before topics exist skip straight to aggregation
		{"segment", "extract", state.Not(isFatal)},
		{"segment", "aggregate", isFatal},
		{"extract", "generate", state.Not(isFatal)},
		{"extract", "aggregate", isFatal},
		{"generate", "evaluate", nil},
		{"evaluate", "generate", retryEdge},
		{"evaluate", "expand", state.Not(retryEdge)},
		{"expand", "aggregate", nil},
	}
	for _, e := range edges {
		if err := graph.AddEdge(e.from, e.to, e.predicate); err != nil {
			return nil, err
		}
	}

	if err := graph.SetEntryPoint("segment"); err != nil {
		return nil, err
	}

	if err := graph.SetExitPoint("aggregate"); err != nil {
		return nil, err
	}

	return graph, nil
}

// segmentNode splits the document into sections unless the input already
// supplied them. Empty content is fatal.
func segmentNode(rt *Runtime, n *notifier) state.StateNode {
	return node("segment", func(ctx context.Context, rs RunState) RunState {
		rs.Stage = StageSegmenting

		if !rs.Sections.Empty() {
			n.emit(rs.Stage, "using supplied sections")
			return rs
		}

		n.emit(rs.Stage, "segmenting document")

		sections, err := Segment(ctx, rt, rs.Content)
		if err != nil {
			rs.Err = err.Error()
			n.emit(StageFailed, rs.Err)
			return rs
		}
		rs.Sections = sections

		rt.Logger.InfoContext(ctx, "segment node complete", "document_id", rs.DocumentID)
		return rs
	})
}

// extractNode classifies the document and extracts its topic units. Any
// failure is fatal to the run.
func extractNode(rt *Runtime, n *notifier) state.StateNode {
	return node("extract", func(ctx context.Context, rs RunState) RunState {
		rs.Stage = StageExtracting
		n.emit(rs.Stage, "classifying document")

		c, err := Classify(ctx, rt, rs.Sections.Introduction)
		if err != nil {
			rs.Err = err.Error()
			n.emit(StageFailed, rs.Err)
			return rs
		}
		rs.Role, rs.Industry = c.Role, c.Industry

		topics, err := ExtractTopics(ctx, rt, c, rs.Sections.MainContent)
		if err != nil {
			rs.Err = err.Error()
			n.emit(StageFailed, rs.Err)
			return rs
		}

		rs.Topics = topics
		rs.Pending = topicIndices(topics)
		n.emit(rs.Stage, fmt.Sprintf("%d topics found", len(topics)))

		rt.Logger.InfoContext(
			ctx, "extract node complete",
			"role", rs.Role,
			"industry", rs.Industry,
			"topic_count", len(topics),
		)
		return rs
	})
}

// generateNode drafts courses for every pending unit and merges the drafts by
// index over any from earlier passes.
func generateNode(rt *Runtime, n *notifier) state.StateNode {
	return node("generate", func(ctx context.Context, rs RunState) RunState {
		rs.Stage = StageGenerating

		if rs.RetryCount > 0 {
			n.emit(rs.Stage, fmt.Sprintf("retrying %d failed units", len(rs.Pending)))
		} else {
			n.emit(rs.Stage, fmt.Sprintf("generating %d courses", len(rs.Pending)))
		}

		drafts := generateDrafts(ctx, rt, generateJobs(&rs))
		rs.Drafts = MergeDrafts(rs.Drafts, drafts)

		rt.Logger.InfoContext(
			ctx, "generate node complete",
			"generated", len(drafts),
			"retry_count", rs.RetryCount,
		)
		return rs
	})
}

// evaluateNode judges the drafts generated in the preceding pass, merges the
// verdicts, and recomputes the failed set. A non-empty failed set increments
// the retry counter and becomes the next pass's pending set.
func evaluateNode(rt *Runtime, n *notifier) state.StateNode {
	return node("evaluate", func(ctx context.Context, rs RunState) RunState {
		rs.Stage = StageEvaluating
		n.emit(rs.Stage, fmt.Sprintf("evaluating %d drafts", len(rs.Pending)))

		verdicts := evaluateDrafts(ctx, rt, rs.Drafts, rs.Pending)
		rs.Verdicts = MergeVerdicts(rs.Verdicts, verdicts)
		rs.Failed = FailedIndices(rs.Verdicts)

		if len(rs.Failed) > 0 {
			rs.RetryCount++
		}
		rs.Pending = slices.Clone(rs.Failed)

		n.emit(rs.Stage, fmt.Sprintf("%d of %d units passed", len(rs.Topics)-len(rs.Failed), len(rs.Topics)))

		rt.Logger.InfoContext(
			ctx, "evaluate node complete",
			"evaluated", len(verdicts),
			"failed", len(rs.Failed),
			"retry_count", rs.RetryCount,
		)
		return rs
	})
}

// expandNode expands the lessons of every unit that survived the gate.
func expandNode(rt *Runtime, n *notifier) state.StateNode {
	return node("expand", func(ctx context.Context, rs RunState) RunState {
		rs.Stage = StageExpanding

		jobs := expandJobs(&rs)
		if dropped := len(rs.Topics) - len(jobs); dropped > 0 {
			n.emit(rs.Stage, fmt.Sprintf("dropping %d units that exhausted retries", dropped))
		}
		n.emit(rs.Stage, fmt.Sprintf("expanding %d courses", len(jobs)))

		rs.Courses = expandCourses(ctx, rt, jobs)

		rt.Logger.InfoContext(ctx, "expand node complete", "course_count", len(rs.Courses))
		return rs
	})
}

// aggregateNode orders the expanded courses by index and finalizes the run
// status. It makes no generation calls.
func aggregateNode(rt *Runtime, n *notifier) state.StateNode {
	return node("aggregate", func(ctx context.Context, rs RunState) RunState {
		if rs.Fatal() {
			rs.Courses = nil
			return rs
		}

		rs.Stage = StageAggregating
		rs.Courses = slices.Clone(rs.Courses)
		slices.SortFunc(rs.Courses, func(a, b ExpandedCourse) int {
			return a.Topic.Index - b.Topic.Index
		})

		rs.Stage = StageDone
		n.emit(rs.Stage, fmt.Sprintf("%d of %d courses complete", len(rs.Courses), len(rs.Topics)))

		rt.Logger.InfoContext(
			ctx, "aggregate node complete",
			"course_count", len(rs.Courses),
			"topic_count", len(rs.Topics),
			"retry_count", rs.RetryCount,
		)
		return rs
	})
}

// node wraps a RunState transformation as a state node. The RunState is taken
// out of the state bag by value and the returned value replaces it.
func node(name string, fn func(context.Context, RunState) RunState) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		rs, err := extractRunState(s)
		if err != nil {
			return s, fmt.Errorf("%s: %w", name, err)
		}

		s = s.Set(KeyRunState, fn(ctx, rs))
		return s, nil
	})
}

func extractRunState(s state.State) (RunState, error) {
	val, ok := s.Get(KeyRunState)
	if !ok {
		return RunState{}, fmt.Errorf("%w: missing %s", ErrMissingState, KeyRunState)
	}

	rs, ok := val.(RunState)
	if !ok {
		return RunState{}, fmt.Errorf("%w: %s is not RunState", ErrMissingState, KeyRunState)
	}

	return rs, nil
}

func extractResult(s state.State) (*Result, error) {
	rs, err := extractRunState(s)
	if err != nil {
		return nil, err
	}

	courses := rs.Courses
	if courses == nil {
		courses = []ExpandedCourse{}
	}

	present := make(map[int]bool, len(courses))
	for _, c := range courses {
		present[c.Topic.Index] = true
	}

	dropped := []int{}
	for _, t := range rs.Topics {
		if !present[t.Index] {
			dropped = append(dropped, t.Index)
		}
	}

	return &Result{
		DocumentID:   rs.DocumentID,
		Role:         rs.Role,
		Industry:     rs.Industry,
		FinalCourses: courses,
		Error:        rs.Err,
		CurrentStep:  rs.Stage,
		TopicCount:   len(rs.Topics),
		RetryCount:   rs.RetryCount,
		Dropped:      dropped,
		CompletedAt:  time.Now(),
	}, nil
}

func isFatal(s state.State) bool {
	rs, err := extractRunState(s)
	if err != nil {
		return true
	}
	return rs.Fatal()
}

func shouldRetry(maxRetries int) func(state.State) bool {
	return func(s state.State) bool {
		rs, err := extractRunState(s)
		if err != nil {
			return false
		}
		return len(rs.Failed) > 0 && rs.RetryCount < maxRetries
	}
}
