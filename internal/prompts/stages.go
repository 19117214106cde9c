package prompts

import "slices"

// Stage identifies the workflow call a prompt targets.
type Stage string

// Workflow call stages.
const (
	StageSegment  Stage = "segment"
	StageClassify Stage = "classify"
	StageTopics   Stage = "topics"
	StageGenerate Stage = "generate"
	StageEvaluate Stage = "evaluate"
	StageExpand   Stage = "expand"
)

var stages = []Stage{
	StageSegment,
	StageClassify,
	StageTopics,
	StageGenerate,
	StageEvaluate,
	StageExpand,
}

// Stages returns the list of valid workflow stages.
func Stages() []Stage {
	return stages
}

// ParseStage validates a string as a known workflow stage.
// Returns ErrInvalidStage if the value is not recognized.
func ParseStage(s string) (Stage, error) {
	v := Stage(s)
	if !slices.Contains(stages, v) {
		return "", ErrInvalidStage
	}
	return v, nil
}
