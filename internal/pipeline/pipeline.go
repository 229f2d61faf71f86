package pipeline

import (
	"context"

	"github.com/nlmatters/semdex/internal/chunker"
	"github.com/nlmatters/semdex/internal/dedup"
	"github.com/nlmatters/semdex/internal/textproc"
)

// Pipeline composes clean, normalize, chunk and deduplicate into one
// deterministic transform from raw document text to a final chunk sequence.
type Pipeline struct {
	cleaner    *textproc.Cleaner
	normalizer *textproc.Normalizer
	chunker    *chunker.Chunker
	dedup      *dedup.Deduplicator
}

// New creates a preprocessing pipeline from its stages.
func New(ch *chunker.Chunker, d *dedup.Deduplicator) *Pipeline {
	return &Pipeline{
		cleaner:    textproc.NewCleaner(),
		normalizer: textproc.NewNormalizer(),
		chunker:    ch,
		dedup:      d,
	}
}

// Process transforms raw text into ordered, deduplicated chunks. Any stage
// producing empty output short-circuits to an empty result, never an error.
// The optional metadata is attached to every emitted chunk.
func (p *Pipeline) Process(ctx context.Context, documentID, text string, metadata map[string]string) ([]chunker.Chunk, error) {
	cleaned := p.cleaner.Clean(text)
	if cleaned == "" {
		return nil, nil
	}

	normalized := p.normalizer.Normalize(cleaned)
	if normalized == "" {
		return nil, nil
	}

	chunks, err := p.chunker.Split(ctx, documentID, normalized)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	chunks = p.dedup.FilterChunks(chunks)
	if len(chunks) == 0 {
		return nil, nil
	}

	if len(metadata) > 0 {
		for i := range chunks {
			m := make(map[string]string, len(metadata))
			for k, v := range metadata {
				m[k] = v
			}
			chunks[i].Metadata = m
		}
	}
	return chunks, nil
}
