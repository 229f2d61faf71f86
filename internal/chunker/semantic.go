package chunker

import (
	"context"
	"fmt"
	"math"
)

// semanticSpans embeds individual sentences and merges adjacent ones into a
// chunk while similarity to the running chunk centroid stays at or above the
// configured threshold. A new chunk starts on a similarity drop or when the
// size limit is reached, whichever comes first.
func (c *Chunker) semanticSpans(ctx context.Context, runes []rune) ([]span, error) {
	sents := splitSentences(runes)
	if len(sents) == 0 {
		return []span{{start: 0, end: len(runes)}}, nil
	}
	if len(sents) == 1 {
		return sents, nil
	}

	texts := make([]string, len(sents))
	for i, s := range sents {
		texts[i] = string(runes[s.start:s.end])
	}
	vectors, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed sentences: %w", err)
	}
	if len(vectors) != len(sents) {
		return nil, fmt.Errorf("expected %d sentence vectors, got %d", len(sents), len(vectors))
	}

	var out []span
	cur := sents[0]
	// Cosine is scale invariant, so the vector sum stands in for the mean.
	centroid := append([]float32(nil), vectors[0]...)

	for i := 1; i < len(sents); i++ {
		s := sents[i]
		sim := cosine(centroid, vectors[i])
		if sim >= float32(c.opts.SemanticThreshold) && s.end-cur.start <= c.opts.ChunkSize {
			cur.end = s.end
			addVector(centroid, vectors[i])
			continue
		}
		out = append(out, cur)
		cur = s
		centroid = append(centroid[:0], vectors[i]...)
	}
	return append(out, cur), nil
}

func addVector(dst, src []float32) {
	for i := range dst {
		if i < len(src) {
			dst[i] += src[i]
		}
	}
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
