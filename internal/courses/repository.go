package courses

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/lectern/internal/documents"
	"github.com/JaimeStill/lectern/internal/prompts"
	"github.com/JaimeStill/lectern/pkg/repository"
	"github.com/JaimeStill/lectern/pkg/storage"
	"github.com/JaimeStill/lectern/workflow"
)

const columns = `id, document_id, role, industry, status, error, current_step,
	topic_count, retry_count, dropped, courses, export_key, generated_at`

type repo struct {
	db     *sql.DB
	rt     *workflow.Runtime
	docs   documents.System
	export exporter
	logger *slog.Logger
}

// New creates a course set repository implementing the System interface.
// It internally constructs the workflow runtime from the provided dependencies.
func New(
	db *sql.DB,
	generator workflow.Generator,
	policy workflow.Policy,
	prompts prompts.System,
	store storage.System,
	exportPrefix string,
	docs documents.System,
	logger *slog.Logger,
) System {
	rt := &workflow.Runtime{
		Generator: generator,
		Prompts:   prompts,
		Policy:    policy,
		Logger:    logger.With("workflow", "course"),
	}
	return &repo{
		db:     db,
		rt:     rt,
		docs:   docs,
		export: exporter{store: store, prefix: exportPrefix},
		logger: logger.With("system", "courses"),
	}
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*CourseSet, error) {
	q := `SELECT ` + columns + ` FROM course_sets WHERE id = $1`

	cs, err := repository.QueryOne(ctx, r.db, q, []any{id}, scanCourseSet)
	if err != nil {
		return nil, errs.Map(err)
	}
	return &cs, nil
}

func (r *repo) FindByDocument(ctx context.Context, documentID uuid.UUID) (*CourseSet, error) {
	q := `SELECT ` + columns + ` FROM course_sets WHERE document_id = $1`

	cs, err := repository.QueryOne(ctx, r.db, q, []any{documentID}, scanCourseSet)
	if err != nil {
		return nil, errs.Map(err)
	}
	return &cs, nil
}

func (r *repo) Generate(ctx context.Context, documentID uuid.UUID, sink workflow.ProgressSink) (*CourseSet, error) {
	doc, err := r.docs.Find(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", documentID, err)
	}

	content, err := r.docs.Content(ctx, doc)
	if err != nil {
		return nil, err
	}

	result, err := r.run(ctx, doc.ID, content, sink)
	if err != nil {
		return nil, fmt.Errorf("generate courses for %s: %w", documentID, err)
	}

	cs, err := r.save(ctx, fromResult(result))
	if err != nil {
		return nil, err
	}

	r.logger.Info("course set generated",
		"id", cs.ID,
		"document_id", cs.DocumentID,
		"status", cs.Status,
		"courses", len(cs.Courses),
		"topics", cs.TopicCount,
		"retries", cs.RetryCount,
	)

	exported, err := r.Export(ctx, cs.ID)
	if err != nil {
		r.logger.Warn("course set export failed", "id", cs.ID, "error", err)
		return cs, nil
	}
	return exported, nil
}

// run executes the workflow under the policy's run timeout; a zero timeout
// leaves the run unbounded. A run that hits the deadline becomes a failed
// result rather than an error so that it is still recorded.
func (r *repo) run(ctx context.Context, documentID uuid.UUID, content string, sink workflow.ProgressSink) (*workflow.Result, error) {
	runCtx := ctx
	if d := r.rt.Policy.RunTimeoutDuration(); d > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	in := workflow.Input{DocumentID: documentID, Content: content}

	result, err := workflow.Execute(runCtx, r.rt, in, sink)
	if ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		r.logger.Warn("course generation timed out",
			"document_id", documentID,
			"timeout", r.rt.Policy.RunTimeout,
		)
		return timedOut(documentID, result), nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *repo) save(ctx context.Context, cs CourseSet) (*CourseSet, error) {
	upsertQ := `
		INSERT INTO course_sets(
			document_id, role, industry, status, error, current_step,
			topic_count, retry_count, dropped, courses, generated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (document_id) DO UPDATE SET
			role = EXCLUDED.role,
			industry = EXCLUDED.industry,
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			current_step = EXCLUDED.current_step,
			topic_count = EXCLUDED.topic_count,
			retry_count = EXCLUDED.retry_count,
			dropped = EXCLUDED.dropped,
			courses = EXCLUDED.courses,
			generated_at = EXCLUDED.generated_at,
			export_key = NULL
		RETURNING ` + columns

	upsertArgs := []any{
		cs.DocumentID,
		cs.Role,
		cs.Industry,
		cs.Status,
		cs.Error,
		cs.CurrentStep,
		cs.TopicCount,
		cs.RetryCount,
		repository.JSON[[]int]{V: cs.Dropped},
		repository.JSON[[]workflow.ExpandedCourse]{V: cs.Courses},
		cs.GeneratedAt,
	}

	saved, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (CourseSet, error) {
		s, err := repository.QueryOne(ctx, tx, upsertQ, upsertArgs, scanCourseSet)
		if err != nil {
			return CourseSet{}, fmt.Errorf("upsert course set: %w", err)
		}

		// failed runs leave the document pending for the next batch
		if s.Status == StatusFailed {
			return s, nil
		}

		if err := r.docs.MarkProcessed(ctx, tx, s.DocumentID); err != nil {
			return CourseSet{}, fmt.Errorf("update document status: %w", err)
		}

		return s, nil
	})
	if err != nil {
		return nil, errs.Map(err)
	}
	return &saved, nil
}

func (r *repo) Export(ctx context.Context, id uuid.UUID) (*CourseSet, error) {
	cs, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	key, err := r.export.write(ctx, cs)
	if err != nil {
		return nil, fmt.Errorf("export course set %s: %w", id, err)
	}

	err = repository.ExecExpectOne(ctx, r.db,
		`UPDATE course_sets SET export_key = $2 WHERE id = $1`,
		id, key,
	)
	if err != nil {
		return nil, errs.Map(err)
	}

	cs.ExportKey = &key
	r.logger.Info("course set exported", "id", id, "key", key)
	return cs, nil
}

// timedOut converts whatever a deadline-interrupted run produced into a
// failed result. Courses are never kept from an interrupted run.
func timedOut(documentID uuid.UUID, partial *workflow.Result) *workflow.Result {
	r := &workflow.Result{
		DocumentID:  documentID,
		CurrentStep: workflow.StageFailed,
		Dropped:     []int{},
	}
	if partial != nil {
		r.Role = partial.Role
		r.Industry = partial.Industry
		r.CurrentStep = partial.CurrentStep
		r.TopicCount = partial.TopicCount
		r.RetryCount = partial.RetryCount
		r.CompletedAt = partial.CompletedAt
	}
	if r.CompletedAt.IsZero() {
		r.CompletedAt = time.Now().UTC()
	}
	r.FinalCourses = []workflow.ExpandedCourse{}
	r.Error = ErrTimeout.Error()
	return r
}

func scanCourseSet(s repository.Scanner) (CourseSet, error) {
	var (
		cs      CourseSet
		dropped repository.JSON[[]int]
		courses repository.JSON[[]workflow.ExpandedCourse]
	)

	err := s.Scan(
		&cs.ID,
		&cs.DocumentID,
		&cs.Role,
		&cs.Industry,
		&cs.Status,
		&cs.Error,
		&cs.CurrentStep,
		&cs.TopicCount,
		&cs.RetryCount,
		&dropped,
		&courses,
		&cs.ExportKey,
		&cs.GeneratedAt,
	)
	if err != nil {
		return cs, err
	}

	cs.Dropped = dropped.V
	cs.Courses = courses.V
	if cs.Dropped == nil {
		cs.Dropped = []int{}
	}
	if cs.Courses == nil {
		cs.Courses = []workflow.ExpandedCourse{}
	}
	return cs, nil
}
