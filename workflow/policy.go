package workflow

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Policy holds the tunable bounds of a workflow run. The evaluation retry
// loop (MaxRetries) and the per-call retry loop (CallAttempts) are independent:
// every generation attempt counted by the former may itself make up to
// CallAttempts model calls.
type Policy struct {
	MaxRetries       int    `toml:"max_retries"`
	GenerateWorkers  int    `toml:"generate_workers"`
	EvaluateWorkers  int    `toml:"evaluate_workers"`
	ExpandWorkers    int    `toml:"expand_workers"`
	CallAttempts     int    `toml:"call_attempts"`
	SegmentAttempts  int    `toml:"segment_attempts"`
	Backoff          string `toml:"backoff"`
	TransientBackoff string `toml:"transient_backoff"`
	ChunkTokens      int    `toml:"chunk_tokens"`
	MinSectionLength int    `toml:"min_section_length"`
	ProgressBuffer   int    `toml:"progress_buffer"`
	RunTimeout       string `toml:"run_timeout"`
}

// PolicyEnv maps policy fields to environment variable names for override injection.
type PolicyEnv struct {
	MaxRetries       string
	GenerateWorkers  string
	EvaluateWorkers  string
	ExpandWorkers    string
	CallAttempts     string
	SegmentAttempts  string
	Backoff          string
	TransientBackoff string
	ChunkTokens      string
	MinSectionLength string
	ProgressBuffer   string
	RunTimeout       string
}

// DefaultPolicy returns a finalized policy with default values.
func DefaultPolicy() Policy {
	var p Policy
	p.loadDefaults()
	return p
}

// BackoffDuration returns Backoff as a time.Duration.
func (p *Policy) BackoffDuration() time.Duration {
	d, _ := time.ParseDuration(p.Backoff)
	return d
}

// TransientBackoffDuration returns TransientBackoff as a time.Duration.
func (p *Policy) TransientBackoffDuration() time.Duration {
	d, _ := time.ParseDuration(p.TransientBackoff)
	return d
}

// RunTimeoutDuration returns RunTimeout as a time.Duration.
func (p *Policy) RunTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(p.RunTimeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (p *Policy) Finalize(env *PolicyEnv) error {
	p.loadDefaults()
	if env != nil {
		p.loadEnv(env)
	}
	return p.validate()
}

// Merge overwrites non-zero fields from overlay.
func (p *Policy) Merge(overlay *Policy) {
	mergeInt(&p.MaxRetries, overlay.MaxRetries)
	mergeInt(&p.GenerateWorkers, overlay.GenerateWorkers)
	mergeInt(&p.EvaluateWorkers, overlay.EvaluateWorkers)
	mergeInt(&p.ExpandWorkers, overlay.ExpandWorkers)
	mergeInt(&p.CallAttempts, overlay.CallAttempts)
	mergeInt(&p.SegmentAttempts, overlay.SegmentAttempts)
	mergeInt(&p.ChunkTokens, overlay.ChunkTokens)
	mergeInt(&p.MinSectionLength, overlay.MinSectionLength)
	mergeInt(&p.ProgressBuffer, overlay.ProgressBuffer)
	mergeString(&p.Backoff, overlay.Backoff)
	mergeString(&p.TransientBackoff, overlay.TransientBackoff)
	mergeString(&p.RunTimeout, overlay.RunTimeout)
}

func (p *Policy) loadDefaults() {
	if p.MaxRetries == 0 {
		p.MaxRetries = 3
	}
	if p.GenerateWorkers == 0 {
		p.GenerateWorkers = 5
	}
	if p.EvaluateWorkers == 0 {
		p.EvaluateWorkers = p.GenerateWorkers
	}
	if p.ExpandWorkers == 0 {
		p.ExpandWorkers = 3
	}
	if p.CallAttempts == 0 {
		p.CallAttempts = 3
	}
	if p.SegmentAttempts == 0 {
		p.SegmentAttempts = 2
	}
	if p.Backoff == "" {
		p.Backoff = "1s"
	}
	if p.TransientBackoff == "" {
		p.TransientBackoff = "5s"
	}
	if p.ChunkTokens == 0 {
		p.ChunkTokens = 8000
	}
	if p.MinSectionLength == 0 {
		p.MinSectionLength = 20
	}
	if p.ProgressBuffer == 0 {
		p.ProgressBuffer = 64
	}
	if p.RunTimeout == "" {
		p.RunTimeout = "30m"
	}
}

func (p *Policy) loadEnv(env *PolicyEnv) {
	envInt(env.MaxRetries, &p.MaxRetries)
	envInt(env.GenerateWorkers, &p.GenerateWorkers)
	envInt(env.EvaluateWorkers, &p.EvaluateWorkers)
	envInt(env.ExpandWorkers, &p.ExpandWorkers)
	envInt(env.CallAttempts, &p.CallAttempts)
	envInt(env.SegmentAttempts, &p.SegmentAttempts)
	envInt(env.ChunkTokens, &p.ChunkTokens)
	envInt(env.MinSectionLength, &p.MinSectionLength)
	envInt(env.ProgressBuffer, &p.ProgressBuffer)
	envString(env.Backoff, &p.Backoff)
	envString(env.TransientBackoff, &p.TransientBackoff)
	envString(env.RunTimeout, &p.RunTimeout)
}

func (p *Policy) validate() error {
	bounds := []struct {
		name  string
		value int
	}{
		{"max_retries", p.MaxRetries},
		{"generate_workers", p.GenerateWorkers},
		{"evaluate_workers", p.EvaluateWorkers},
		{"expand_workers", p.ExpandWorkers},
		{"call_attempts", p.CallAttempts},
		{"segment_attempts", p.SegmentAttempts},
		{"chunk_tokens", p.ChunkTokens},
		{"min_section_length", p.MinSectionLength},
		{"progress_buffer", p.ProgressBuffer},
	}
	for _, b := range bounds {
		if b.value < 1 {
			return fmt.Errorf("%w: %s must be at least 1, got %d", ErrInvalidPolicy, b.name, b.value)
		}
	}

	durations := []struct {
		name  string
		value string
	}{
		{"backoff", p.Backoff},
		{"transient_backoff", p.TransientBackoff},
		{"run_timeout", p.RunTimeout},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("%w: invalid %s: %w", ErrInvalidPolicy, d.name, err)
		}
		if parsed < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidPolicy, d.name)
		}
	}

	return nil
}

func mergeInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if name == "" {
		return
	}
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envString(name string, dst *string) {
	if name == "" {
		return
	}
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func workerCount(limit, units int) int {
	return max(min(limit, units), 1)
}
