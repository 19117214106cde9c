// Package workflow implements the course generation workflow for Lectern.
// A document is segmented, topics are extracted, and each topic is fanned out
// through generate → evaluate (with bounded retry) → expand before the
// surviving courses are aggregated. The stages run as nodes of a state graph
// that threads a single RunState value from node to node.
package workflow

import "errors"

// Sentinel errors for workflow operations.
var (
	ErrEmptyDocument  = errors.New("document has no content")
	ErrSegmentFailed  = errors.New("segmentation failed")
	ErrExtractFailed  = errors.New("topic extraction failed")
	ErrNoTopics       = errors.New("no topics extracted")
	ErrGenerateFailed = errors.New("course generation failed")
	ErrEvaluateFailed = errors.New("evaluation failed")
	ErrExpandFailed   = errors.New("lesson expansion failed")
	ErrMissingState   = errors.New("run state missing from graph state")
	ErrInvalidPolicy  = errors.New("invalid workflow policy")
)
