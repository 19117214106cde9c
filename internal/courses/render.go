package courses

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/JaimeStill/lectern/workflow"
)

// Markdown renders a course set as a markdown document. Degraded lessons
// are flagged inline; their stub fields are still shown.
func Markdown(cs *CourseSet) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Courses for %s in %s\n\n", fallback(cs.Role, "unknown role"), fallback(cs.Industry, "unknown industry"))
	fmt.Fprintf(&b, "Status: **%s**. %d of %d topics produced a course.\n\n", cs.Status, len(cs.Courses), cs.TopicCount)
	if cs.Error != "" {
		fmt.Fprintf(&b, "> %s\n\n", cs.Error)
	}

	for _, c := range cs.Courses {
		writeCourse(&b, c)
	}
	return b.String()
}

// RenderHTML converts the markdown rendering into a standalone HTML page.
// Raw HTML in generated text is omitted by the converter.
func RenderHTML(cs *CourseSet) ([]byte, error) {
	var body bytes.Buffer
	if err := goldmark.Convert([]byte(Markdown(cs)), &body); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n", html.EscapeString(title(cs)))
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

func writeCourse(b *strings.Builder, c workflow.ExpandedCourse) {
	fmt.Fprintf(b, "## %s\n\n", c.CourseName)
	if c.CourseDescription != "" {
		fmt.Fprintf(b, "%s\n\n", c.CourseDescription)
	}
	if c.Topic.Topic != "" {
		fmt.Fprintf(b, "*Topic: %s*\n\n", c.Topic.Topic)
	}

	for _, l := range c.Lessons {
		heading := fmt.Sprintf("Lesson %d: %s", l.Number, l.Title)
		if l.Bonus {
			heading += " (bonus)"
		}
		fmt.Fprintf(b, "### %s\n\n", heading)

		if l.Degraded {
			b.WriteString("*Expansion unavailable for this lesson.*\n\n")
		}
		if l.Introduction != "" {
			fmt.Fprintf(b, "%s\n\n", l.Introduction)
		}

		writeList(b, "Skill aims", l.SkillAims)

		if len(l.LanguageAims) > 0 {
			b.WriteString("**Language aims**\n\n")
			for _, a := range l.LanguageAims {
				fmt.Fprintf(b, "- %s: %s\n", a.Category, strings.Join(a.Examples, "; "))
			}
			b.WriteString("\n")
		}

		writeList(b, "Summary", l.Summary)
	}
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "**%s**\n\n", label)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
	b.WriteString("\n")
}

func title(cs *CourseSet) string {
	return fmt.Sprintf("Courses for %s in %s", fallback(cs.Role, "unknown role"), fallback(cs.Industry, "unknown industry"))
}

func fallback(s, alt string) string {
	if strings.TrimSpace(s) == "" {
		return alt
	}
	return s
}
