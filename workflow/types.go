package workflow

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// KeyRunState is the state bag key under which the RunState travels.
const KeyRunState = "run_state"

// Stage is a state of the workflow controller.
type Stage string

// Controller states.
const (
	StageStarting    Stage = "starting"
	StageSegmenting  Stage = "segmenting"
	StageExtracting  Stage = "extracting"
	StageGenerating  Stage = "generating"
	StageEvaluating  Stage = "evaluating"
	StageExpanding   Stage = "expanding"
	StageAggregating Stage = "aggregating"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

// Sections is a document split into its three structural parts.
type Sections struct {
	Introduction string `json:"introduction"`
	MainContent  string `json:"main_content"`
	Conclusion   string `json:"conclusion"`
}

// Empty reports whether every section is blank.
func (s Sections) Empty() bool {
	return s.Introduction == "" && s.MainContent == "" && s.Conclusion == ""
}

// TopicUnit is one independent unit of downstream work. Index is assigned
// at extraction and is the join key for every value derived from the unit.
type TopicUnit struct {
	Index       int    `json:"index"`
	Topic       string `json:"topic"`
	Description string `json:"description"`
}

// LessonStub is a lesson as produced by course generation, before expansion.
type LessonStub struct {
	Number       int    `json:"lesson_number"`
	Title        string `json:"lesson_title"`
	Introduction string `json:"lesson_introduction"`
	Bonus        bool   `json:"is_bonus"`
}

// DraftCourse is the course skeleton generated for a topic.
type DraftCourse struct {
	CourseName        string       `json:"course_name"`
	CourseDescription string       `json:"course_description"`
	Lessons           []LessonStub `json:"lessons"`
}

// DraftResult is the outcome of generating a course for one topic. Exactly
// one of Draft and Failure is set; construct with NewDraft or NewFailedDraft.
type DraftResult struct {
	Index   int          `json:"index"`
	Topic   TopicUnit    `json:"topic"`
	Draft   *DraftCourse `json:"draft,omitempty"`
	Failure string       `json:"failure,omitempty"`
}

// NewDraft wraps a successfully generated course.
func NewDraft(topic TopicUnit, draft DraftCourse) DraftResult {
	return DraftResult{Index: topic.Index, Topic: topic, Draft: &draft}
}

// NewFailedDraft records that generation for the topic failed.
func NewFailedDraft(topic TopicUnit, reason string) DraftResult {
	if reason == "" {
		reason = ErrGenerateFailed.Error()
	}
	return DraftResult{Index: topic.Index, Topic: topic, Failure: reason}
}

// OK reports whether the result carries a draft.
func (r DraftResult) OK() bool {
	return r.Draft != nil
}

// EvaluationVerdict is the evaluation gate's judgment of one draft.
type EvaluationVerdict struct {
	Index    int    `json:"index"`
	Passed   bool   `json:"passed"`
	Feedback string `json:"feedback,omitempty"`
}

// LanguageAim is a category of target language with example phrases.
type LanguageAim struct {
	Category string   `json:"aim_category"`
	Examples []string `json:"examples"`
}

// Lesson is a fully expanded lesson. Degraded marks a lesson whose
// expansion failed and that carries only its stub fields.
type Lesson struct {
	Number       int           `json:"lesson_number"`
	Title        string        `json:"lesson_title"`
	Introduction string        `json:"lesson_introduction"`
	SkillAims    []string      `json:"skill_aims"`
	LanguageAims []LanguageAim `json:"language_learning_aims"`
	Summary      []string      `json:"lesson_summary"`
	Bonus        bool          `json:"is_bonus"`
	Degraded     bool          `json:"degraded,omitempty"`
}

// ExpandedCourse is a course whose lessons have been expanded.
type ExpandedCourse struct {
	CourseName        string    `json:"course_name"`
	CourseDescription string    `json:"course_description"`
	Topic             TopicUnit `json:"topic"`
	Lessons           []Lesson  `json:"lessons"`
}

// RunState is the value threaded through every node of the workflow graph.
// Nodes take it out of the state bag, replace the fields they own, and put
// it back; fan-out workers never see it.
type RunState struct {
	DocumentID uuid.UUID                 `json:"document_id"`
	Content    string                    `json:"-"`
	Sections   Sections                  `json:"sections"`
	Role       string                    `json:"role"`
	Industry   string                    `json:"industry"`
	Topics     []TopicUnit               `json:"topics"`
	Drafts     []DraftResult             `json:"drafts"`
	Verdicts   map[int]EvaluationVerdict `json:"verdicts"`
	RetryCount int                       `json:"retry_count"`
	Failed     []int                     `json:"failed"`
	Pending    []int                     `json:"pending"`
	Courses    []ExpandedCourse          `json:"courses"`
	Stage      Stage                     `json:"stage"`
	Err        string                    `json:"error"`
}

// Fatal reports whether the run recorded an unrecoverable error.
func (s *RunState) Fatal() bool {
	return s.Err != ""
}

// Result is the final output of a workflow execution. A run succeeded fully
// when Error is empty and len(FinalCourses) == TopicCount, partially when
// Error is empty and some units were dropped, and failed when Error is set.
type Result struct {
	DocumentID   uuid.UUID        `json:"document_id"`
	Role         string           `json:"role"`
	Industry     string           `json:"industry"`
	FinalCourses []ExpandedCourse `json:"final_courses"`
	Error        string           `json:"error"`
	CurrentStep  Stage            `json:"current_step"`
	TopicCount   int              `json:"topic_count"`
	RetryCount   int              `json:"retry_count"`
	Dropped      []int            `json:"dropped"`
	CompletedAt  time.Time        `json:"completed_at"`
}

// Partial reports whether the run completed but dropped at least one unit.
func (r *Result) Partial() bool {
	return r.Error == "" && len(r.FinalCourses) < r.TopicCount
}

// MergeDrafts overlays updates onto existing by index and returns a new
// slice sorted ascending by index. Indices absent from updates keep their
// existing result.
func MergeDrafts(existing, updates []DraftResult) []DraftResult {
	byIndex := make(map[int]DraftResult, len(existing)+len(updates))
	for _, d := range existing {
		byIndex[d.Index] = d
	}
	for _, d := range updates {
		byIndex[d.Index] = d
	}

	merged := slices.Collect(maps.Values(byIndex))
	slices.SortFunc(merged, func(a, b DraftResult) int {
		return a.Index - b.Index
	})
	return merged
}

// MergeVerdicts returns a new verdict map in which each update supersedes
// the existing verdict for its index.
func MergeVerdicts(existing map[int]EvaluationVerdict, updates []EvaluationVerdict) map[int]EvaluationVerdict {
	merged := make(map[int]EvaluationVerdict, len(existing)+len(updates))
	maps.Copy(merged, existing)
	for _, v := range updates {
		merged[v.Index] = v
	}
	return merged
}

// FailedIndices returns the sorted indices whose verdict is failing.
func FailedIndices(verdicts map[int]EvaluationVerdict) []int {
	var failed []int
	for idx, v := range verdicts {
		if !v.Passed {
			failed = append(failed, idx)
		}
	}
	slices.Sort(failed)
	return failed
}

func topicIndices(topics []TopicUnit) []int {
	indices := make([]int, len(topics))
	for i, t := range topics {
		indices[i] = t.Index
	}
	return indices
}
