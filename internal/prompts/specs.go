package prompts

const segmentSpec = `Respond with a JSON object matching this exact structure:

{
  "introduction": "<text>",
  "main_content": "<text>",
  "conclusion": "<text>"
}

Field constraints:
- Each field holds verbatim document text.
- A section that is absent from this text is "[PARTIAL]".

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing`

const classifySpec = `Respond with a JSON object matching this exact structure:

{
  "role": "<professional role or job title>",
  "industry": "<industry or sector>"
}

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing`

const topicsSpec = `Respond with a JSON object matching this exact structure:

{
  "topic_pairs": [
    {"topic": "<topic>", "description": "<detailed description>"}
  ]
}

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- List topics in the order they appear in the content`

const generateSpec = `Respond with a JSON object matching this exact structure:

{
  "course_name": "<name>",
  "course_description": "<description>",
  "lessons": [
    {
      "lesson_number": 1,
      "lesson_title": "<title>",
      "lesson_introduction": "<introduction paragraph>",
      "is_bonus": false
    }
  ]
}

Field constraints:
- lesson_number: sequential, starting at 1, unique within the course
- is_bonus: true only for bonus lessons outside the sequential flow

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing`

const evaluateSpec = `Respond with a JSON object matching this exact structure:

{
  "passed": true,
  "feedback": "<explanation when passed is false, otherwise empty>"
}

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing`

const expandSpec = `Respond with a JSON object matching this exact structure:

{
  "skill_aims": ["<skill>"],
  "language_learning_aims": [
    {"aim_category": "<category>", "examples": ["<phrase>"]}
  ],
  "lesson_summary": ["<takeaway>"]
}

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing`

var specs = map[Stage]string{
	StageSegment:  segmentSpec,
	StageClassify: classifySpec,
	StageTopics:   topicsSpec,
	StageGenerate: generateSpec,
	StageEvaluate: evaluateSpec,
	StageExpand:   expandSpec,
}

// Spec returns the hardcoded specification for a workflow stage.
// Specifications define the expected output format and are never overridden.
// Returns ErrInvalidStage if the stage is not recognized.
func Spec(stage Stage) (string, error) {
	text, ok := specs[stage]
	if !ok {
		return "", ErrInvalidStage
	}
	return text, nil
}
