package chunker

import (
	"context"
	"fmt"
	"strings"
)

// Strategy selects how document text is split into chunks.
type Strategy string

const (
	StrategySentence  Strategy = "sentence"
	StrategyParagraph Strategy = "paragraph"
	StrategyFixed     Strategy = "fixed"
	StrategySemantic  Strategy = "semantic"
)

// ParseStrategy converts a config string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategySentence:
		return StrategySentence, nil
	case StrategyParagraph:
		return StrategyParagraph, nil
	case StrategyFixed:
		return StrategyFixed, nil
	case StrategySemantic:
		return StrategySemantic, nil
	default:
		return "", &InvalidStrategyError{Strategy: s}
	}
}

// InvalidStrategyError is returned when an unknown strategy is requested.
// It is detected before any chunking work starts.
type InvalidStrategyError struct {
	Strategy string
}

func (e *InvalidStrategyError) Error() string {
	return fmt.Sprintf("invalid chunking strategy: %q (valid: sentence, paragraph, fixed, semantic)", e.Strategy)
}

// Chunk is a contiguous retrieval unit of a document's text.
// Offsets are rune offsets into the normalized document text and always
// satisfy EndOffset > StartOffset. ChunkIndex values are contiguous from 0
// in emitted order.
type Chunk struct {
	DocumentID    string
	ChunkIndex    int
	Text          string
	StartOffset   int
	EndOffset     int
	CharCount     int
	WordCount     int
	SentenceCount int
	Strategy      Strategy
	Metadata      map[string]string
}

// Options configures a Chunker.
type Options struct {
	Strategy          Strategy
	ChunkSize         int     // target chunk size in runes
	Overlap           int     // trailing runes re-included in the next chunk; < ChunkSize
	SemanticThreshold float64 // similarity floor for the semantic strategy
}

// SentenceEmbedder supplies sentence vectors for the semantic strategy.
type SentenceEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Chunker splits normalized text into ordered chunks under a strategy.
type Chunker struct {
	opts     Options
	embedder SentenceEmbedder
}

// New creates a chunker for the sentence, paragraph and fixed strategies.
func New(opts Options) (*Chunker, error) {
	return newChunker(opts, nil)
}

// NewSemantic creates a chunker that may use the semantic strategy.
func NewSemantic(opts Options, embedder SentenceEmbedder) (*Chunker, error) {
	return newChunker(opts, embedder)
}

func newChunker(opts Options, embedder SentenceEmbedder) (*Chunker, error) {
	if _, err := ParseStrategy(string(opts.Strategy)); err != nil {
		return nil, err
	}
	if opts.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", opts.ChunkSize)
	}
	if opts.Overlap < 0 || opts.Overlap >= opts.ChunkSize {
		return nil, fmt.Errorf("overlap must be in [0, chunk size), got %d", opts.Overlap)
	}
	if opts.Strategy == StrategySemantic {
		if embedder == nil {
			return nil, fmt.Errorf("semantic strategy requires a sentence embedder")
		}
		if opts.SemanticThreshold <= 0 || opts.SemanticThreshold > 1 {
			return nil, fmt.Errorf("semantic threshold must be in (0,1], got %v", opts.SemanticThreshold)
		}
	}
	return &Chunker{opts: opts, embedder: embedder}, nil
}

// Split chunks normalized text for a document. Empty or whitespace-only
// input yields a nil slice and no error. Input shorter than the chunk size
// yields exactly one chunk.
func (c *Chunker) Split(ctx context.Context, documentID, text string) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	runes := []rune(text)

	var spans []span
	var err error
	switch c.opts.Strategy {
	case StrategySentence:
		spans = c.sentenceSpans(runes)
	case StrategyParagraph:
		spans = c.paragraphSpans(runes)
	case StrategyFixed:
		spans = c.fixedSpans(runes)
	case StrategySemantic:
		spans, err = c.semanticSpans(ctx, runes)
	default:
		return nil, &InvalidStrategyError{Strategy: string(c.opts.Strategy)}
	}
	if err != nil {
		return nil, err
	}

	chunks := make([]Chunk, 0, len(spans))
	for _, sp := range spans {
		sp = trimSpan(runes, sp)
		if sp.end <= sp.start {
			continue
		}
		chunkText := string(runes[sp.start:sp.end])
		chunks = append(chunks, Chunk{
			DocumentID:    documentID,
			ChunkIndex:    len(chunks),
			Text:          chunkText,
			StartOffset:   sp.start,
			EndOffset:     sp.end,
			CharCount:     sp.end - sp.start,
			WordCount:     len(strings.Fields(chunkText)),
			SentenceCount: countSentences(chunkText),
			Strategy:      c.opts.Strategy,
		})
	}
	if len(chunks) == 0 {
		return nil, nil
	}
	return chunks, nil
}

// span is a half-open [start, end) rune range within the document text.
type span struct {
	start int
	end   int
}

// trimSpan shrinks a span so it excludes leading and trailing whitespace.
func trimSpan(runes []rune, sp span) span {
	for sp.start < sp.end && isSpace(runes[sp.start]) {
		sp.start++
	}
	for sp.end > sp.start && isSpace(runes[sp.end-1]) {
		sp.end--
	}
	return sp
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

func countSentences(text string) int {
	n := len(splitSentences([]rune(text)))
	if n == 0 && strings.TrimSpace(text) != "" {
		return 1
	}
	return n
}
