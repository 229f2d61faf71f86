package textproc

import (
	"strings"
	"unicode"
)

// Cleaner strips noise from raw document text before normalization:
// control characters, zero-width runes, stray carriage returns and
// runaway blank lines.
type Cleaner struct{}

// NewCleaner creates a new cleaner
func NewCleaner() *Cleaner {
	return &Cleaner{}
}

// Clean returns the cleaned text. Whitespace-only input cleans to "".
func (c *Cleaner) Clean(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if isZeroWidth(r) {
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	text = b.String()

	text = trimLineTrailingSpace(text)
	text = collapseBlankLines(text)

	return strings.TrimSpace(text)
}

func isZeroWidth(r rune) bool {
	switch r {
	case '\u200B', '\u200C', '\u200D', '\u2060', '\uFEFF':
		return true
	}
	return false
}

func trimLineTrailingSpace(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

// collapseBlankLines reduces runs of 2+ blank lines to a single blank line,
// preserving paragraph boundaries for downstream chunking.
func collapseBlankLines(text string) string {
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return text
}
