package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/JaimeStill/lectern/internal/prompts"
)

// Classification is the role and industry a document addresses.
type Classification struct {
	Role     string `json:"role"`
	Industry string `json:"industry"`
}

type topicPair struct {
	Topic       string `json:"topic"`
	Description string `json:"description"`
}

type topicsResponse struct {
	Pairs []topicPair `json:"topic_pairs"`
}

// Classify derives the role and industry from the document introduction.
func Classify(ctx context.Context, rt *Runtime, introduction string) (Classification, error) {
	task := fmt.Sprintf(
		"Identify the professional role and industry this document addresses.\n\nIntroduction:\n%s",
		introduction,
	)

	req, err := ComposeRequest(ctx, rt.Prompts, prompts.StageClassify, -1, task)
	if err != nil {
		return Classification{}, fmt.Errorf("%w: %w", ErrExtractFailed, err)
	}

	c, err := invokeWithRetry[Classification](ctx, rt.Generator, &rt.Policy, req)
	if err != nil {
		return Classification{}, fmt.Errorf("%w: classify: %w", ErrExtractFailed, err)
	}

	c.Role = strings.TrimSpace(c.Role)
	c.Industry = strings.TrimSpace(c.Industry)
	if c.Role == "" || c.Industry == "" {
		return Classification{}, fmt.Errorf("%w: classification is missing role or industry", ErrExtractFailed)
	}

	return c, nil
}

// ExtractTopics derives the ordered topic units from the main content, using
// the classification as context. Each unit's index is its position in the
// extracted order. Returns ErrNoTopics when nothing usable is extracted.
func ExtractTopics(ctx context.Context, rt *Runtime, c Classification, mainContent string) ([]TopicUnit, error) {
	task := fmt.Sprintf(
		"Role: %s\nIndustry: %s\n\nExtract the independent topics of the following content, each with a detailed description.\n\nContent:\n%s",
		c.Role, c.Industry, mainContent,
	)

	req, err := ComposeRequest(ctx, rt.Prompts, prompts.StageTopics, -1, task)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractFailed, err)
	}

	resp, err := invokeWithRetry[topicsResponse](ctx, rt.Generator, &rt.Policy, req)
	if err != nil {
		return nil, fmt.Errorf("%w: topics: %w", ErrExtractFailed, err)
	}

	topics := make([]TopicUnit, 0, len(resp.Pairs))
	for _, p := range resp.Pairs {
		topic := strings.TrimSpace(p.Topic)
		if topic == "" {
			continue
		}
		topics = append(topics, TopicUnit{
			Index:       len(topics),
			Topic:       topic,
			Description: strings.TrimSpace(p.Description),
		})
	}

	if len(topics) == 0 {
		return nil, ErrNoTopics
	}

	return topics, nil
}
