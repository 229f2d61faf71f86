package search

import (
	"context"
	"fmt"
	"sort"

	"github.com/nlmatters/semdex/internal/chunker"
	"github.com/nlmatters/semdex/internal/store"
)

// Embedder turns query text into a vector. The embedding batch processor
// satisfies this.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Engine provides hybrid search combining vector similarity and keyword
// relevance over one collection.
type Engine struct {
	vectors    *store.VectorStore
	chunks     *store.ChunkStore
	keyword    *KeywordIndex
	embedder   Embedder
	collection string
	rrfK       int
}

// Options configures search behavior
type Options struct {
	TopK    int               // Number of results to return
	Filters map[string]string // Exact-match payload constraints
}

// DefaultOptions returns default search options
func DefaultOptions() Options {
	return Options{TopK: 10}
}

// Result is one fused search hit.
type Result struct {
	ID            string
	VectorScore   float32 // Metric score from the vector scan, 0 if vector-missed
	KeywordScore  float64 // bleve relevance, 0 if keyword-missed
	CombinedScore float64 // Reciprocal-rank fusion of both rankings
	Payload       map[string]string
	Chunk         *chunker.Chunk // Populated when the hit resolves to a stored chunk
}

// NewEngine creates a search engine over the given stores
func NewEngine(vectors *store.VectorStore, chunks *store.ChunkStore, keyword *KeywordIndex, embedder Embedder, collection string, rrfK int) *Engine {
	if rrfK <= 0 {
		rrfK = 60
	}
	return &Engine{
		vectors:    vectors,
		chunks:     chunks,
		keyword:    keyword,
		embedder:   embedder,
		collection: collection,
		rrfK:       rrfK,
	}
}

// Search runs a hybrid query. An empty query with filters lists matching
// records without touching the embedder or any scoring.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}

	if query == "" {
		return e.filterOnly(opts)
	}

	// Step 1: Embed the query
	queryVector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// Step 2: Vector candidates, filtered during the scan
	vectorHits, err := e.vectors.Search(e.collection, queryVector, opts.TopK*2, opts.Filters)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	// Step 3: Keyword candidates
	keywordHits, err := e.keyword.Search(query, opts.TopK*2)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}

	// Step 4: Fuse both rankings with reciprocal ranks
	fused := make(map[string]*Result)

	for rank, hit := range vectorHits {
		fused[hit.ID] = &Result{
			ID:            hit.ID,
			VectorScore:   hit.Score,
			CombinedScore: rrfScore(e.rrfK, rank),
			Payload:       hit.Payload,
		}
	}

	for rank, hit := range keywordHits {
		existing, ok := fused[hit.ID]
		if !ok {
			// A keyword-only hit must still satisfy the payload filters
			payload, ok, err := e.recordPayload(hit.ID, opts.Filters)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			existing = &Result{ID: hit.ID, Payload: payload}
			fused[hit.ID] = existing
		}
		existing.KeywordScore = hit.Score
		existing.CombinedScore += rrfScore(e.rrfK, rank)
	}

	results := make([]Result, 0, len(fused))
	for _, r := range fused {
		results = append(results, *r)
	}

	// Step 5: Order by fused score; break ties on vector score, then id
	sort.Slice(results, func(i, j int) bool {
		if results[i].CombinedScore != results[j].CombinedScore {
			return results[i].CombinedScore > results[j].CombinedScore
		}
		if results[i].VectorScore != results[j].VectorScore {
			return results[i].VectorScore > results[j].VectorScore
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}

	e.attachChunks(results)

	return results, nil
}

// filterOnly lists records matching the filters in id order. No embedding
// call is made and all scores stay zero.
func (e *Engine) filterOnly(opts Options) ([]Result, error) {
	hits, err := e.vectors.ListByFilters(e.collection, opts.Filters, opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("filter search failed: %w", err)
	}
	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, Result{ID: hit.ID, Payload: hit.Payload})
	}
	e.attachChunks(results)
	return results, nil
}

// recordPayload loads the payload for a keyword hit and checks it against
// the filters. Hits absent from the collection are dropped.
func (e *Engine) recordPayload(id string, filters map[string]string) (map[string]string, bool, error) {
	rec, err := e.vectors.Get(e.collection, id)
	if err != nil {
		// The keyword index may be ahead of the vector store; skip
		return nil, false, nil
	}
	for key, want := range filters {
		if rec.Payload[key] != want {
			return nil, false, nil
		}
	}
	return rec.Payload, true, nil
}

func (e *Engine) attachChunks(results []Result) {
	if e.chunks == nil {
		return
	}
	for i := range results {
		if ch, err := e.chunks.Get(results[i].ID); err == nil {
			results[i].Chunk = ch
		}
	}
}

func rrfScore(k, rank int) float64 {
	return 1.0 / float64(k+rank+1)
}
