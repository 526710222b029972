package rendering

import (
	"strings"
)

// SplitSlides splits deck markdown on lines holding only "---".
// Separators inside fenced code blocks are ignored, and a fence wrapping the whole
// document is removed first.
func SplitSlides(markdown string) []string {
	markdown = stripOuterFence(strings.ReplaceAll(markdown, "\r\n", "\n"))

	var slides []string
	var current []string
	inFence := false

	flush := func() {
		if s := strings.TrimSpace(strings.Join(current, "\n")); s != "" {
			slides = append(slides, s)
		}
		current = current[:0]
	}

	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
		}
		if !inFence && isSeparator(trimmed) {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return slides
}

func isSeparator(line string) bool {
	return len(line) >= 3 && strings.Trim(line, "-") == ""
}

func stripOuterFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") || !strings.HasSuffix(t, "```") || len(t) < 6 {
		return s
	}
	first := strings.IndexByte(t, '\n')
	if first < 0 {
		return s
	}
	lang := strings.TrimSpace(t[3:first])
	if lang != "" && lang != "markdown" && lang != "md" {
		return s
	}
	return t[first+1 : len(t)-3]
}

// SlideTitle returns the text of the first markdown heading in a slide.
func SlideTitle(slide string) string {
	for _, line := range strings.Split(slide, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "#"))
		}
	}
	return ""
}
