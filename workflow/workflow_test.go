package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/JaimeStill/lectern/internal/prompts"
	"github.com/JaimeStill/lectern/workflow"
)

type fakeGenerator struct {
	mu      sync.Mutex
	calls   map[string]int
	respond func(req workflow.Request, call int) (string, error)
}

func newFakeGenerator(respond func(req workflow.Request, call int) (string, error)) *fakeGenerator {
	return &fakeGenerator{calls: make(map[string]int), respond: respond}
}

func (f *fakeGenerator) Generate(_ context.Context, req workflow.Request) (string, error) {
	f.mu.Lock()
	key := callKey(req.Stage, req.Index)
	f.calls[key]++
	n := f.calls[key]
	f.mu.Unlock()

	return f.respond(req, n)
}

func (f *fakeGenerator) count(stage prompts.Stage, index int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[callKey(stage, index)]
}

func callKey(stage prompts.Stage, index int) string {
	return fmt.Sprintf("%s/%d", stage, index)
}

// standardResponses answers every stage successfully for a document with
// the given number of topics.
func standardResponses(topics int) func(workflow.Request, int) (string, error) {
	return func(req workflow.Request, _ int) (string, error) {
		switch req.Stage {
		case prompts.StageSegment:
			return `{"introduction":"An introduction long enough to count.","main_content":"The main body of the document text.","conclusion":"A conclusion long enough to count."}`, nil
		case prompts.StageClassify:
			return `{"role":"Field Engineer","industry":"Energy"}`, nil
		case prompts.StageTopics:
			pairs := make([]string, topics)
			for i := range topics {
				pairs[i] = fmt.Sprintf(`{"topic":"Topic %d","description":"Description %d"}`, i, i)
			}
			return fmt.Sprintf(`{"topic_pairs":[%s]}`, strings.Join(pairs, ",")), nil
		case prompts.StageGenerate:
			return fmt.Sprintf(`{"course_name":"Course %d","course_description":"About topic %d","lessons":[
				{"lesson_number":1,"lesson_title":"First","lesson_introduction":"Intro one","is_bonus":false},
				{"lesson_number":2,"lesson_title":"Second","lesson_introduction":"Intro two","is_bonus":true}]}`,
				req.Index, req.Index), nil
		case prompts.StageExpand:
			return `{"skill_aims":["listen"],"language_learning_aims":[{"aim_category":"greetings","examples":["hello"]}],"lesson_summary":["done"]}`, nil
		case prompts.StageEvaluate:
			return `{"passed":true,"feedback":""}`, nil
		}
		return "", fmt.Errorf("unexpected stage %s", req.Stage)
	}
}

type fakeEvaluator struct {
	mu sync.Mutex
	// failures[index] is the number of evaluations of that index that fail
	// before it passes; a negative value always fails.
	failures map[int]int
	calls    map[int]int
}

func newFakeEvaluator(failures map[int]int) *fakeEvaluator {
	return &fakeEvaluator{failures: failures, calls: make(map[int]int)}
}

func (f *fakeEvaluator) Evaluate(_ context.Context, topic workflow.TopicUnit, _ workflow.DraftCourse) (workflow.Judgment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[topic.Index]++
	limit, ok := f.failures[topic.Index]
	if ok && (limit < 0 || f.calls[topic.Index] <= limit) {
		return workflow.Judgment{Passed: false, Feedback: fmt.Sprintf("attempt %d rejected", f.calls[topic.Index])}, nil
	}
	return workflow.Judgment{Passed: true}, nil
}

func (f *fakeEvaluator) count(index int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[index]
}

func testPolicy() workflow.Policy {
	p := workflow.DefaultPolicy()
	p.Backoff = "0s"
	p.TransientBackoff = "0s"
	return p
}

func newRuntime(g workflow.Generator, e workflow.Evaluator) *workflow.Runtime {
	return &workflow.Runtime{
		Generator: g,
		Evaluator: e,
		Prompts:   prompts.New(nil),
		Policy:    testPolicy(),
	}
}

func suppliedInput() workflow.Input {
	return workflow.Input{
		DocumentID: uuid.New(),
		Sections: workflow.Sections{
			Introduction: "This guide introduces field work.",
			MainContent:  "Safety, tooling, and reporting.",
			Conclusion:   "Stay safe.",
		},
	}
}

func courseIndices(courses []workflow.ExpandedCourse) []int {
	indices := make([]int, len(courses))
	for i, c := range courses {
		indices[i] = c.Topic.Index
	}
	return indices
}

func TestExecute_AllPass(t *testing.T) {
	g := newFakeGenerator(standardResponses(3))
	rt := newRuntime(g, newFakeEvaluator(nil))

	result, err := workflow.Execute(context.Background(), rt, suppliedInput(), nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if result.Error != "" {
		t.Fatalf("Error = %q, want empty", result.Error)
	}
	if result.CurrentStep != workflow.StageDone {
		t.Errorf("CurrentStep = %q, want %q", result.CurrentStep, workflow.StageDone)
	}
	if result.Role != "Field Engineer" || result.Industry != "Energy" {
		t.Errorf("classification = %q/%q", result.Role, result.Industry)
	}
	if got := courseIndices(result.FinalCourses); !slices.Equal(got, []int{0, 1, 2}) {
		t.Errorf("course indices = %v, want [0 1 2]", got)
	}
	if result.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", result.RetryCount)
	}
	if result.Partial() {
		t.Error("Partial() = true for a complete run")
	}

	lesson := result.FinalCourses[0].Lessons[1]
	if lesson.Degraded || !lesson.Bonus || len(lesson.SkillAims) != 1 || lesson.LanguageAims[0].Category != "greetings" {
		t.Errorf("unexpected expanded lesson: %+v", lesson)
	}

	if n := g.count(prompts.StageSegment, 0); n != 0 {
		t.Errorf("segment calls = %d, want 0 when sections are supplied", n)
	}
}

func TestExecute_RetryThenPass(t *testing.T) {
	g := newFakeGenerator(standardResponses(3))
	e := newFakeEvaluator(map[int]int{1: 2})
	rt := newRuntime(g, e)

	result, err := workflow.Execute(context.Background(), rt, suppliedInput(), nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(result.FinalCourses) != 3 {
		t.Fatalf("len(FinalCourses) = %d, want 3", len(result.FinalCourses))
	}
	if result.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", result.RetryCount)
	}
	if result.Error != "" {
		t.Errorf("Error = %q, want empty", result.Error)
	}

	if n := g.count(prompts.StageGenerate, 1); n != 3 {
		t.Errorf("generate calls for unit 1 = %d, want 3", n)
	}
	for _, idx := range []int{0, 2} {
		if n := g.count(prompts.StageGenerate, idx); n != 1 {
			t.Errorf("generate calls for unit %d = %d, want 1", idx, n)
		}
		if n := e.count(idx); n != 1 {
			t.Errorf("evaluations of unit %d = %d, want 1", idx, n)
		}
	}
}

func TestExecute_RetriedUnitExpandsLatestDraft(t *testing.T) {
	base := standardResponses(3)
	g := newFakeGenerator(func(req workflow.Request, call int) (string, error) {
		if req.Stage != prompts.StageGenerate {
			return base(req, call)
		}
		return fmt.Sprintf(`{"course_name":"Course %d v%d","course_description":"Revision %d","lessons":[
			{"lesson_number":1,"lesson_title":"Lesson v%d","lesson_introduction":"Intro","is_bonus":false}]}`,
			req.Index, call, call, call), nil
	})
	rt := newRuntime(g, newFakeEvaluator(map[int]int{1: 2}))

	result, err := workflow.Execute(context.Background(), rt, suppliedInput(), nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(result.FinalCourses) != 3 {
		t.Fatalf("len(FinalCourses) = %d, want 3", len(result.FinalCourses))
	}

	want := map[int]string{0: "Course 0 v1", 1: "Course 1 v3", 2: "Course 2 v1"}
	for _, c := range result.FinalCourses {
		if c.CourseName != want[c.Topic.Index] {
			t.Errorf("unit %d CourseName = %q, want %q", c.Topic.Index, c.CourseName, want[c.Topic.Index])
		}
	}

	retried := result.FinalCourses[slices.IndexFunc(result.FinalCourses, func(c workflow.ExpandedCourse) bool {
		return c.Topic.Index == 1
	})]
	if retried.CourseDescription != "Revision 3" || retried.Lessons[0].Title != "Lesson v3" {
		t.Errorf("retried unit expanded from a stale draft: %+v", retried)
	}
}

func TestExecute_FeedbackCarriedIntoRetry(t *testing.T) {
	var mu sync.Mutex
	var retryPrompts []string

	base := standardResponses(1)
	g := newFakeGenerator(func(req workflow.Request, call int) (string, error) {
		if req.Stage == prompts.StageGenerate && call > 1 {
			mu.Lock()
			retryPrompts = append(retryPrompts, req.Prompt)
			mu.Unlock()
		}
		return base(req, call)
	})
	rt := newRuntime(g, newFakeEvaluator(map[int]int{0: 1}))

	if _, err := workflow.Execute(context.Background(), rt, suppliedInput(), nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(retryPrompts) != 1 {
		t.Fatalf("retry prompts = %d, want 1", len(retryPrompts))
	}
	if !strings.Contains(retryPrompts[0], "attempt 1 rejected") {
		t.Errorf("retry prompt does not carry feedback: %q", retryPrompts[0])
	}
}

func TestExecute_ExhaustedUnitDropped(t *testing.T) {
	g := newFakeGenerator(standardResponses(2))
	rt := newRuntime(g, newFakeEvaluator(map[int]int{0: -1}))

	result, err := workflow.Execute(context.Background(), rt, suppliedInput(), nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if got := courseIndices(result.FinalCourses); !slices.Equal(got, []int{1}) {
		t.Errorf("course indices = %v, want [1]", got)
	}
	if result.Error != "" {
		t.Errorf("Error = %q, want empty", result.Error)
	}
	if !slices.Equal(result.Dropped, []int{0}) {
		t.Errorf("Dropped = %v, want [0]", result.Dropped)
	}
	if !result.Partial() {
		t.Error("Partial() = false, want true")
	}
	if n := g.count(prompts.StageGenerate, 0); n != 3 {
		t.Errorf("generate calls for unit 0 = %d, want 3", n)
	}
}

func TestExecute_RetryBound(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries int
	}{
		{"one", 1},
		{"default", 3},
		{"five", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newFakeGenerator(standardResponses(2))
			e := newFakeEvaluator(map[int]int{0: -1, 1: -1})
			rt := newRuntime(g, e)
			rt.Policy.MaxRetries = tt.maxRetries

			result, err := workflow.Execute(context.Background(), rt, suppliedInput(), nil)
			if err != nil {
				t.Fatalf("Execute failed: %v", err)
			}

			if result.RetryCount != tt.maxRetries {
				t.Errorf("RetryCount = %d, want %d", result.RetryCount, tt.maxRetries)
			}
			for _, idx := range []int{0, 1} {
				if n := e.count(idx); n != tt.maxRetries {
					t.Errorf("evaluations of unit %d = %d, want %d", idx, n, tt.maxRetries)
				}
			}
			if len(result.FinalCourses) != 0 {
				t.Errorf("len(FinalCourses) = %d, want 0", len(result.FinalCourses))
			}
			if result.Error != "" || result.CurrentStep != workflow.StageDone {
				t.Errorf("Error = %q, CurrentStep = %q", result.Error, result.CurrentStep)
			}
		})
	}
}

func TestExecute_GenerationIsolation(t *testing.T) {
	base := standardResponses(3)
	g := newFakeGenerator(func(req workflow.Request, call int) (string, error) {
		if req.Stage == prompts.StageGenerate && req.Index == 1 {
			return "", errors.New("upstream exploded")
		}
		return base(req, call)
	})
	rt := newRuntime(g, workflow.StructuralEvaluator{})

	result, err := workflow.Execute(context.Background(), rt, suppliedInput(), nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if got := courseIndices(result.FinalCourses); !slices.Equal(got, []int{0, 2}) {
		t.Errorf("course indices = %v, want [0 2]", got)
	}

	want := rt.Policy.CallAttempts * rt.Policy.MaxRetries
	if n := g.count(prompts.StageGenerate, 1); n != want {
		t.Errorf("generate calls for unit 1 = %d, want %d", n, want)
	}
	for _, idx := range []int{0, 2} {
		if n := g.count(prompts.StageGenerate, idx); n != 1 {
			t.Errorf("generate calls for unit %d = %d, want 1", idx, n)
		}
	}
}

func TestExecute_LessonDegrades(t *testing.T) {
	base := standardResponses(1)
	g := newFakeGenerator(func(req workflow.Request, call int) (string, error) {
		if req.Stage == prompts.StageExpand && strings.Contains(req.Prompt, "Lesson 2:") {
			return "not json at all", nil
		}
		return base(req, call)
	})
	rt := newRuntime(g, workflow.StructuralEvaluator{})

	result, err := workflow.Execute(context.Background(), rt, suppliedInput(), nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(result.FinalCourses) != 1 {
		t.Fatalf("len(FinalCourses) = %d, want 1", len(result.FinalCourses))
	}

	lessons := result.FinalCourses[0].Lessons
	if len(lessons) != 2 {
		t.Fatalf("len(Lessons) = %d, want 2", len(lessons))
	}
	if lessons[0].Degraded {
		t.Error("lesson 1 degraded, want expanded")
	}

	degraded := lessons[1]
	if !degraded.Degraded || degraded.Title != "Second" || !degraded.Bonus {
		t.Errorf("lesson 2 = %+v, want degraded stub", degraded)
	}
	if degraded.SkillAims == nil || len(degraded.SkillAims) != 0 || len(degraded.Summary) != 0 || len(degraded.LanguageAims) != 0 {
		t.Errorf("degraded lesson detail not empty: %+v", degraded)
	}
}

func TestExecute_FatalExtraction(t *testing.T) {
	tests := []struct {
		name    string
		respond func(workflow.Request, int) (string, error)
		wantErr string
	}{
		{
			name: "no topics",
			respond: func(req workflow.Request, call int) (string, error) {
				if req.Stage == prompts.StageTopics {
					return `{"topic_pairs":[]}`, nil
				}
				return standardResponses(0)(req, call)
			},
			wantErr: workflow.ErrNoTopics.Error(),
		},
		{
			name: "classification fails",
			respond: func(req workflow.Request, call int) (string, error) {
				if req.Stage == prompts.StageClassify {
					return "", errors.New("model unavailable")
				}
				return standardResponses(2)(req, call)
			},
			wantErr: workflow.ErrExtractFailed.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newFakeGenerator(tt.respond)
			rt := newRuntime(g, workflow.StructuralEvaluator{})

			result, err := workflow.Execute(context.Background(), rt, suppliedInput(), nil)
			if err != nil {
				t.Fatalf("Execute failed: %v", err)
			}

			if !strings.Contains(result.Error, tt.wantErr) {
				t.Errorf("Error = %q, want containing %q", result.Error, tt.wantErr)
			}
			if len(result.FinalCourses) != 0 {
				t.Errorf("len(FinalCourses) = %d, want 0", len(result.FinalCourses))
			}
			if result.CurrentStep != workflow.StageExtracting {
				t.Errorf("CurrentStep = %q, want %q", result.CurrentStep, workflow.StageExtracting)
			}
			if n := g.count(prompts.StageGenerate, 0); n != 0 {
				t.Errorf("generate calls = %d, want 0", n)
			}
		})
	}
}

func TestExecute_EmptyDocument(t *testing.T) {
	g := newFakeGenerator(standardResponses(1))
	rt := newRuntime(g, nil)

	result, err := workflow.Execute(context.Background(), rt, workflow.Input{DocumentID: uuid.New(), Content: "  \n "}, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if result.Error != workflow.ErrEmptyDocument.Error() {
		t.Errorf("Error = %q, want %q", result.Error, workflow.ErrEmptyDocument.Error())
	}
	if result.CurrentStep != workflow.StageSegmenting {
		t.Errorf("CurrentStep = %q, want %q", result.CurrentStep, workflow.StageSegmenting)
	}
}

func TestExecute_SegmentsContent(t *testing.T) {
	g := newFakeGenerator(standardResponses(1))
	rt := newRuntime(g, nil)

	in := workflow.Input{
		DocumentID: uuid.New(),
		Content:    "First paragraph.\n\nSecond paragraph.\n\nThird paragraph.",
	}

	result, err := workflow.Execute(context.Background(), rt, in, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if n := g.count(prompts.StageSegment, 0); n != 1 {
		t.Errorf("segment calls = %d, want 1", n)
	}
	if len(result.FinalCourses) != 1 {
		t.Errorf("len(FinalCourses) = %d, want 1", len(result.FinalCourses))
	}
}

func TestExecute_ModelEvaluatorDefault(t *testing.T) {
	base := standardResponses(2)
	g := newFakeGenerator(func(req workflow.Request, call int) (string, error) {
		if req.Stage == prompts.StageEvaluate && req.Index == 1 {
			return `{"passed":false,"feedback":"off topic"}`, nil
		}
		return base(req, call)
	})
	rt := newRuntime(g, nil)

	result, err := workflow.Execute(context.Background(), rt, suppliedInput(), nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if got := courseIndices(result.FinalCourses); !slices.Equal(got, []int{0}) {
		t.Errorf("course indices = %v, want [0]", got)
	}
	if n := g.count(prompts.StageEvaluate, 1); n != rt.Policy.MaxRetries {
		t.Errorf("model evaluations of unit 1 = %d, want %d", n, rt.Policy.MaxRetries)
	}
}

func TestExecute_Progress(t *testing.T) {
	var mu sync.Mutex
	var events []workflow.Event

	sink := workflow.SinkFunc(func(e workflow.Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	g := newFakeGenerator(standardResponses(3))
	rt := newRuntime(g, newFakeEvaluator(map[int]int{2: 1}))

	if _, err := workflow.Execute(context.Background(), rt, suppliedInput(), sink); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()

	messages := make([]string, len(events))
	for i, e := range events {
		messages[i] = e.Message
	}

	for _, want := range []string{"3 topics found", "retrying 1 failed units", "3 of 3 courses complete"} {
		if !slices.Contains(messages, want) {
			t.Errorf("missing progress message %q in %v", want, messages)
		}
	}
	if last := events[len(events)-1]; last.Stage != workflow.StageDone {
		t.Errorf("last event stage = %q, want %q", last.Stage, workflow.StageDone)
	}
}

func TestExecute_PanickingSink(t *testing.T) {
	sink := workflow.SinkFunc(func(workflow.Event) {
		panic("sink exploded")
	})

	g := newFakeGenerator(standardResponses(1))
	rt := newRuntime(g, nil)

	result, err := workflow.Execute(context.Background(), rt, suppliedInput(), sink)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(result.FinalCourses) != 1 {
		t.Errorf("len(FinalCourses) = %d, want 1", len(result.FinalCourses))
	}
}

func TestExecute_Repeatable(t *testing.T) {
	rt := newRuntime(newFakeGenerator(standardResponses(2)), nil)
	in := suppliedInput()

	first, err := workflow.Execute(context.Background(), rt, in, nil)
	if err != nil {
		t.Fatalf("first Execute failed: %v", err)
	}
	second, err := workflow.Execute(context.Background(), rt, in, nil)
	if err != nil {
		t.Fatalf("second Execute failed: %v", err)
	}

	if !slices.Equal(courseIndices(first.FinalCourses), courseIndices(second.FinalCourses)) {
		t.Errorf("runs differ: %v vs %v", courseIndices(first.FinalCourses), courseIndices(second.FinalCourses))
	}
	if first.RetryCount != second.RetryCount {
		t.Errorf("retry counts differ: %d vs %d", first.RetryCount, second.RetryCount)
	}
}

func TestExecute_InvalidRuntime(t *testing.T) {
	if _, err := workflow.Execute(context.Background(), &workflow.Runtime{}, suppliedInput(), nil); err == nil {
		t.Error("expected error for runtime without generator")
	}
}
