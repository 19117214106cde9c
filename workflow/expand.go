package workflow

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/lectern/internal/prompts"
)

type expandResponse struct {
	SkillAims    []string      `json:"skill_aims"`
	LanguageAims []LanguageAim `json:"language_learning_aims"`
	Summary      []string      `json:"lesson_summary"`
}

// expandJob is a worker's private copy of one surviving draft.
type expandJob struct {
	Topic    TopicUnit
	Draft    DraftCourse
	Role     string
	Industry string
}

// expandJobs selects the latest draft of every unit that carries a draft and
// is not in the failed set, in index order.
func expandJobs(rs *RunState) []expandJob {
	var jobs []expandJob
	for _, d := range rs.Drafts {
		if !d.OK() || slices.Contains(rs.Failed, d.Index) {
			continue
		}
		jobs = append(jobs, expandJob{
			Topic:    d.Topic,
			Draft:    *d.Draft,
			Role:     rs.Role,
			Industry: rs.Industry,
		})
	}
	return jobs
}

// expandCourses expands every job's lessons on a bounded pool. Lessons within
// a course are expanded in order; a lesson whose expansion fails keeps its
// stub fields with empty detail.
func expandCourses(ctx context.Context, rt *Runtime, jobs []expandJob) []ExpandedCourse {
	courses := make([]ExpandedCourse, len(jobs))

	g := new(errgroup.Group)
	g.SetLimit(workerCount(rt.Policy.ExpandWorkers, len(jobs)))

	for i, job := range jobs {
		g.Go(func() error {
			courses[i] = expandCourse(ctx, rt, job)
			return nil
		})
	}

	g.Wait()
	return courses
}

func expandCourse(ctx context.Context, rt *Runtime, job expandJob) ExpandedCourse {
	lessons := make([]Lesson, len(job.Draft.Lessons))

	for i, stub := range job.Draft.Lessons {
		lesson, err := expandLesson(ctx, rt, job, stub)
		if err != nil {
			rt.Logger.WarnContext(ctx, "lesson expansion degraded",
				"index", job.Topic.Index,
				"lesson", stub.Number,
				"error", err,
			)
			lesson = degradedLesson(stub)
		}
		lessons[i] = lesson
	}

	return ExpandedCourse{
		CourseName:        job.Draft.CourseName,
		CourseDescription: job.Draft.CourseDescription,
		Topic:             job.Topic,
		Lessons:           lessons,
	}
}

func expandLesson(ctx context.Context, rt *Runtime, job expandJob, stub LessonStub) (Lesson, error) {
	req, err := ComposeRequest(ctx, rt.Prompts, prompts.StageExpand, job.Topic.Index, expandTask(job, stub))
	if err != nil {
		return Lesson{}, fmt.Errorf("%w: %w", ErrExpandFailed, err)
	}

	resp, err := invokeWithRetry[expandResponse](ctx, rt.Generator, &rt.Policy, req)
	if err != nil {
		return Lesson{}, fmt.Errorf("%w: %w", ErrExpandFailed, err)
	}

	lesson := degradedLesson(stub)
	lesson.Degraded = false
	lesson.SkillAims = nonNil(resp.SkillAims)
	lesson.Summary = nonNil(resp.Summary)
	lesson.LanguageAims = resp.LanguageAims
	if lesson.LanguageAims == nil {
		lesson.LanguageAims = []LanguageAim{}
	}
	return lesson, nil
}

func degradedLesson(stub LessonStub) Lesson {
	return Lesson{
		Number:       stub.Number,
		Title:        stub.Title,
		Introduction: stub.Introduction,
		SkillAims:    []string{},
		LanguageAims: []LanguageAim{},
		Summary:      []string{},
		Bonus:        stub.Bonus,
		Degraded:     true,
	}
}

func expandTask(job expandJob, stub LessonStub) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Role: %s\nIndustry: %s\n\n", job.Role, job.Industry)
	fmt.Fprintf(&sb, "Course: %s\n%s\n\n", job.Draft.CourseName, job.Draft.CourseDescription)
	fmt.Fprintf(&sb, "Lesson %d: %s\n%s\n", stub.Number, stub.Title, stub.Introduction)
	if stub.Bonus {
		sb.WriteString("This is a bonus lesson.\n")
	}

	return sb.String()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
