package prompts_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/JaimeStill/lectern/internal/prompts"
)

func TestDefaultsCoverEveryStage(t *testing.T) {
	for _, stage := range prompts.Stages() {
		t.Run(string(stage), func(t *testing.T) {
			if text, err := prompts.Instructions(stage); err != nil || text == "" {
				t.Errorf("Instructions(%s) = %q, %v", stage, text, err)
			}
			if text, err := prompts.Spec(stage); err != nil || text == "" {
				t.Errorf("Spec(%s) = %q, %v", stage, text, err)
			}
		})
	}
}

func TestParseStage(t *testing.T) {
	tests := []struct {
		input   string
		want    prompts.Stage
		wantErr bool
	}{
		{"segment", prompts.StageSegment, false},
		{"generate", prompts.StageGenerate, false},
		{"expand", prompts.StageExpand, false},
		{"finalize", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := prompts.ParseStage(tt.input)
			if tt.wantErr {
				if !errors.Is(err, prompts.ErrInvalidStage) {
					t.Errorf("err = %v, want ErrInvalidStage", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseStage(%q) = %q, %v; want %q", tt.input, got, err, tt.want)
			}
		})
	}
}

func TestSystemOverrides(t *testing.T) {
	ctx := context.Background()
	sys := prompts.New(map[prompts.Stage]string{
		prompts.StageGenerate: "custom generate",
	})

	got, err := sys.Instructions(ctx, prompts.StageGenerate)
	if err != nil || got != "custom generate" {
		t.Errorf("Instructions(generate) = %q, %v; want override", got, err)
	}

	def, _ := prompts.Instructions(prompts.StageEvaluate)
	got, err = sys.Instructions(ctx, prompts.StageEvaluate)
	if err != nil || got != def {
		t.Errorf("Instructions(evaluate) = %q, %v; want default", got, err)
	}

	spec, _ := prompts.Spec(prompts.StageGenerate)
	got, err = sys.Spec(ctx, prompts.StageGenerate)
	if err != nil || got != spec {
		t.Errorf("Spec(generate) should never be overridden")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prompts.yaml")
		content := "generate: |\n  Build a course.\nevaluate: Judge strictly.\n"
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		got, err := prompts.LoadOverrides(path)
		if err != nil {
			t.Fatalf("LoadOverrides error: %v", err)
		}
		if got[prompts.StageGenerate] != "Build a course." {
			t.Errorf("generate = %q", got[prompts.StageGenerate])
		}
		if got[prompts.StageEvaluate] != "Judge strictly." {
			t.Errorf("evaluate = %q", got[prompts.StageEvaluate])
		}
	})

	t.Run("unknown stage", func(t *testing.T) {
		_, err := prompts.ParseOverrides([]byte("finalize: nope\n"))
		if !errors.Is(err, prompts.ErrInvalidStage) {
			t.Errorf("err = %v, want ErrInvalidStage", err)
		}
	})

	t.Run("blank value", func(t *testing.T) {
		_, err := prompts.ParseOverrides([]byte("expand: \"  \"\n"))
		if !errors.Is(err, prompts.ErrEmptyPrompt) {
			t.Errorf("err = %v, want ErrEmptyPrompt", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := prompts.LoadOverrides(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
