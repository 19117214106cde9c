package workflow

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/lectern/internal/prompts"
)

// generateJob is a worker's private copy of everything it needs to draft
// one course.
type generateJob struct {
	Topic    TopicUnit
	Role     string
	Industry string
	Feedback string
}

func generateJobs(rs *RunState) []generateJob {
	byIndex := make(map[int]TopicUnit, len(rs.Topics))
	for _, t := range rs.Topics {
		byIndex[t.Index] = t
	}

	jobs := make([]generateJob, 0, len(rs.Pending))
	for _, idx := range rs.Pending {
		topic, ok := byIndex[idx]
		if !ok {
			continue
		}
		jobs = append(jobs, generateJob{
			Topic:    topic,
			Role:     rs.Role,
			Industry: rs.Industry,
			Feedback: rs.Verdicts[idx].Feedback,
		})
	}
	return jobs
}

// generateDrafts drafts a course for each job on a bounded pool. A job that
// exhausts its call retries yields a failure variant; the pool never aborts.
// Results are returned in job order.
func generateDrafts(ctx context.Context, rt *Runtime, jobs []generateJob) []DraftResult {
	results := make([]DraftResult, len(jobs))

	g := new(errgroup.Group)
	g.SetLimit(workerCount(rt.Policy.GenerateWorkers, len(jobs)))

	for i, job := range jobs {
		g.Go(func() error {
			draft, err := generateDraft(ctx, rt, job)
			if err != nil {
				rt.Logger.WarnContext(ctx, "course generation failed", "index", job.Topic.Index, "error", err)
				results[i] = NewFailedDraft(job.Topic, err.Error())
				return nil
			}
			results[i] = NewDraft(job.Topic, draft)
			return nil
		})
	}

	g.Wait()
	return results
}

func generateDraft(ctx context.Context, rt *Runtime, job generateJob) (DraftCourse, error) {
	req, err := ComposeRequest(ctx, rt.Prompts, prompts.StageGenerate, job.Topic.Index, generateTask(job))
	if err != nil {
		return DraftCourse{}, fmt.Errorf("topic %d: %w: %w", job.Topic.Index, ErrGenerateFailed, err)
	}

	draft, err := invokeWithRetry[DraftCourse](ctx, rt.Generator, &rt.Policy, req)
	if err != nil {
		return DraftCourse{}, fmt.Errorf("topic %d: %w: %w", job.Topic.Index, ErrGenerateFailed, err)
	}

	return draft, nil
}

func generateTask(job generateJob) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Role: %s\nIndustry: %s\n\n", job.Role, job.Industry)
	fmt.Fprintf(&sb, "Topic: %s\nTopic description: %s\n", job.Topic.Topic, job.Topic.Description)

	if job.Feedback != "" {
		fmt.Fprintf(&sb, "\nA previous version of this course was rejected:\n%s\nAddress this feedback in the new version.\n", job.Feedback)
	}

	return sb.String()
}
