// Package courses implements the course set domain for Lectern. A course set
// is the persisted outcome of one workflow run over a document: the courses
// that survived generation, the run's status, and the location of its export.
package courses

import (
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/lectern/workflow"
)

// Status summarizes how a run ended.
type Status string

const (
	// StatusComplete means every extracted topic produced a course.
	StatusComplete Status = "complete"
	// StatusPartial means the run finished but dropped at least one topic.
	StatusPartial Status = "partial"
	// StatusFailed means the run recorded a fatal error.
	StatusFailed Status = "failed"
)

// CourseSet is a stored workflow result for a document.
type CourseSet struct {
	ID          uuid.UUID                 `json:"id"`
	DocumentID  uuid.UUID                 `json:"document_id"`
	Role        string                    `json:"role"`
	Industry    string                    `json:"industry"`
	Status      Status                    `json:"status"`
	Error       string                    `json:"error"`
	CurrentStep string                    `json:"current_step"`
	TopicCount  int                       `json:"topic_count"`
	RetryCount  int                       `json:"retry_count"`
	Dropped     []int                     `json:"dropped"`
	Courses     []workflow.ExpandedCourse `json:"courses"`
	ExportKey   *string                   `json:"export_key"`
	GeneratedAt time.Time                 `json:"generated_at"`
}

// StatusOf classifies a workflow result.
func StatusOf(r *workflow.Result) Status {
	switch {
	case r.Error != "":
		return StatusFailed
	case len(r.FinalCourses) < r.TopicCount:
		return StatusPartial
	default:
		return StatusComplete
	}
}

// fromResult maps a workflow result onto a course set awaiting persistence.
func fromResult(r *workflow.Result) CourseSet {
	dropped := r.Dropped
	if dropped == nil {
		dropped = []int{}
	}
	courses := r.FinalCourses
	if courses == nil {
		courses = []workflow.ExpandedCourse{}
	}

	return CourseSet{
		DocumentID:  r.DocumentID,
		Role:        r.Role,
		Industry:    r.Industry,
		Status:      StatusOf(r),
		Error:       r.Error,
		CurrentStep: string(r.CurrentStep),
		TopicCount:  r.TopicCount,
		RetryCount:  r.RetryCount,
		Dropped:     dropped,
		Courses:     courses,
		GeneratedAt: r.CompletedAt,
	}
}
