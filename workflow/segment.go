package workflow

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/JaimeStill/lectern/internal/prompts"
)

// PartialMarker marks a section that is absent from a chunk.
const PartialMarker = "[PARTIAL]"

// Placeholders substituted when no chunk contributes to a section.
const (
	PlaceholderIntroduction = "No introduction was identified in the document."
	PlaceholderMainContent  = "No main content was identified in the document."
	PlaceholderConclusion   = "No conclusion was identified in the document."
)

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// Segment splits content into introduction, main content, and conclusion.
// Content over the policy's chunk threshold is split into paragraph-aligned
// chunks that are segmented independently and merged in chunk order. A chunk
// whose calls fail falls back to a positional split, so Segment only fails
// for empty content.
func Segment(ctx context.Context, rt *Runtime, content string) (Sections, error) {
	if strings.TrimSpace(content) == "" {
		return Sections{}, ErrEmptyDocument
	}

	chunks := chunkText(content, rt.Policy.ChunkTokens, rt.tokens())
	parts := make([]Sections, 0, len(chunks))

	for i, chunk := range chunks {
		sections, err := segmentChunk(ctx, rt, i, chunk)
		if err != nil {
			if ctx.Err() != nil {
				return Sections{}, fmt.Errorf("%w: %w", ErrSegmentFailed, ctx.Err())
			}
			rt.Logger.WarnContext(ctx, "segment chunk fell back to heuristic", "chunk", i, "error", err)
			sections = heuristicSections(chunk)
		}
		parts = append(parts, sections)
	}

	return mergeSections(parts), nil
}

func segmentChunk(ctx context.Context, rt *Runtime, index int, chunk string) (Sections, error) {
	task := fmt.Sprintf(
		"Split the following text into its introduction, main content, and conclusion.\n\nText:\n%s",
		chunk,
	)

	req, err := ComposeRequest(ctx, rt.Prompts, prompts.StageSegment, index, task)
	if err != nil {
		return Sections{}, err
	}

	return retry(ctx, &rt.Policy, rt.Policy.SegmentAttempts, func(ctx context.Context) (Sections, error) {
		s, err := invoke[Sections](ctx, rt.Generator, req)
		if err != nil {
			return Sections{}, err
		}
		if tooShort(s, rt.Policy.MinSectionLength) {
			return Sections{}, fmt.Errorf("%w: every section is shorter than %d characters", ErrSegmentFailed, rt.Policy.MinSectionLength)
		}
		return s, nil
	})
}

func tooShort(s Sections, minLength int) bool {
	for _, text := range []string{s.Introduction, s.MainContent, s.Conclusion} {
		if utf8.RuneCountInString(strings.TrimSpace(text)) >= minLength {
			return false
		}
	}
	return true
}

func mergeSections(parts []Sections) Sections {
	var intro, main, conclusion []string

	for _, p := range parts {
		if text, ok := usable(p.Introduction); ok {
			intro = append(intro, text)
		}
		if text := stripPartial(p.MainContent); text != "" {
			main = append(main, text)
		}
		if text, ok := usable(p.Conclusion); ok {
			conclusion = append(conclusion, text)
		}
	}

	return Sections{
		Introduction: joinOr(intro, PlaceholderIntroduction),
		MainContent:  joinOr(main, PlaceholderMainContent),
		Conclusion:   joinOr(conclusion, PlaceholderConclusion),
	}
}

// usable reports whether an introduction or conclusion is present in its
// chunk. Anything carrying the partial marker is discarded.
func usable(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" || strings.Contains(text, PartialMarker) {
		return "", false
	}
	return text, true
}

// stripPartial removes the partial marker from a main content body and keeps
// whatever text remains.
func stripPartial(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, PartialMarker, ""))
}

func joinOr(parts []string, placeholder string) string {
	if len(parts) == 0 {
		return placeholder
	}
	return strings.Join(parts, "\n\n")
}

// heuristicSections assigns the first quarter of paragraphs to the
// introduction, the last quarter to the conclusion, and the rest to the main
// content.
func heuristicSections(chunk string) Sections {
	paragraphs := splitParagraphs(chunk)
	n := len(paragraphs)

	switch {
	case n == 0:
		return Sections{}
	case n < 3:
		return Sections{
			Introduction: paragraphs[0],
			MainContent:  strings.Join(paragraphs, "\n\n"),
			Conclusion:   paragraphs[n-1],
		}
	}

	quarter := max(n/4, 1)
	return Sections{
		Introduction: strings.Join(paragraphs[:quarter], "\n\n"),
		MainContent:  strings.Join(paragraphs[quarter:n-quarter], "\n\n"),
		Conclusion:   strings.Join(paragraphs[n-quarter:], "\n\n"),
	}
}

func splitParagraphs(text string) []string {
	var paragraphs []string
	for _, p := range paragraphBreak.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// chunkText packs paragraphs into chunks of at most limit tokens as measured
// by count. A paragraph over the limit is split at sentence boundaries, and a
// sentence over the limit is split by hardSplit.
func chunkText(text string, limit int, count func(string) int) []string {
	if count(text) <= limit {
		return []string{strings.TrimSpace(text)}
	}

	var pieces []string
	for _, p := range splitParagraphs(text) {
		if count(p) <= limit {
			pieces = append(pieces, p)
			continue
		}
		for _, s := range splitSentences(p) {
			if count(s) <= limit {
				pieces = append(pieces, s)
				continue
			}
			pieces = append(pieces, hardSplit(s, limit, count)...)
		}
	}

	return pack(pieces, limit, count)
}

func pack(pieces []string, limit int, count func(string) int) []string {
	var chunks []string
	var current []string
	tokens := 0

	for _, piece := range pieces {
		t := count(piece)
		if len(current) > 0 && tokens+t > limit {
			chunks = append(chunks, strings.Join(current, "\n\n"))
			current, tokens = nil, 0
		}
		current = append(current, piece)
		tokens += t
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n\n"))
	}
	return chunks
}

func splitSentences(paragraph string) []string {
	var sentences []string
	runes := []rune(paragraph)
	start := 0

	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}

	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// hardSplit cuts s into runs of limit*4 characters, then halves any run that
// still counts over limit.
func hardSplit(s string, limit int, count func(string) int) []string {
	runes := []rune(s)
	size := max(limit*4, 1)

	parts := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		parts = append(parts, bisect(runes[start:end], limit, count)...)
	}
	return parts
}

func bisect(runes []rune, limit int, count func(string) int) []string {
	s := string(runes)
	if len(runes) <= 1 || count(s) <= limit {
		return []string{s}
	}
	mid := len(runes) / 2
	return append(bisect(runes[:mid], limit, count), bisect(runes[mid:], limit, count)...)
}
