package llm

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// WordWrap re-flows each line of text to at most width runes, breaking only
// between words. Blank lines survive; a word longer than width gets its own line.
func WordWrap(text string, width int) string {
	if width <= 0 {
		return text
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		var (
			b   strings.Builder
			col int
		)
		for _, w := range strings.Fields(line) {
			n := utf8.RuneCountInString(w)
			switch {
			case col == 0:
			case col+1+n > width:
				b.WriteByte('\n')
				col = 0
			default:
				b.WriteByte(' ')
				col++
			}
			b.WriteString(w)
			col += n
		}
		lines[i] = b.String()
	}
	return strings.Join(lines, "\n")
}

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// CleanText strips reasoning blocks emitted by some local models and
// surrounding markdown fences, leaving the prose.
func CleanText(text string) string {
	text = thinkBlock.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if nl := strings.IndexByte(text, '\n'); nl != -1 {
			text = text[nl+1:] // drop language tag
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	return strings.TrimSpace(text)
}

// Truncate shortens s to at most n runes for log output.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
