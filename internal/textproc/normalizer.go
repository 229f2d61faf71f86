package textproc

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalizer canonicalizes cleaned text: Unicode NFKC, quote and dash
// folding, whitespace unification and optional case folding.
type Normalizer struct {
	// Lowercase enables case folding. The ingestion pipeline keeps original
	// case for stored chunks; deduplication fingerprints fold case themselves.
	Lowercase bool
}

// NewNormalizer creates a new normalizer
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

var punctReplacer = strings.NewReplacer(
	"‘", "'", // left single quote
	"’", "'", // right single quote
	"“", `"`, // left double quote
	"”", `"`, // right double quote
	"–", "-", // en dash
	"—", "-", // em dash
	"…", "...", // ellipsis
	" ", " ", // no-break space
)

// Normalize returns the normalized text. Whitespace-only input normalizes
// to "".
func (n *Normalizer) Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = norm.NFKC.String(text)
	text = punctReplacer.Replace(text)
	text = collapseSpaces(text)
	if n.Lowercase {
		text = strings.ToLower(text)
	}
	return strings.TrimSpace(text)
}

// collapseSpaces reduces runs of spaces and tabs within a line to a single
// space. Newlines are preserved so paragraph structure survives.
func collapseSpaces(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		fields := strings.Fields(line)
		lines[i] = strings.Join(fields, " ")
	}
	return strings.Join(lines, "\n")
}
