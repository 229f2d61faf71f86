package embedding

import (
	"context"
	"errors"
	"time"

	"github.com/nlmatters/semdex/internal/config"
)

// Item is the embedding result for one input text. Exactly one of Vector
// and Err is set.
type Item struct {
	Vector []float32
	Err    error
}

// BatchProcessor embeds texts through a provider client, fronted by a
// content-addressed cache. Cache failures degrade to direct computation;
// provider failures are retried with bounded exponential backoff and, once
// exhausted, poison only the sub-batch they occurred in.
type BatchProcessor struct {
	client     Client
	cache      Cache
	ttl        time.Duration
	batchSize  int
	maxRetries int
	baseDelay  time.Duration
}

// NewBatchProcessor wires a client and an optional cache. A nil cache
// disables caching entirely.
func NewBatchProcessor(client Client, cache Cache, cfg *config.EmbeddingConfig, ttl time.Duration) *BatchProcessor {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &BatchProcessor{
		client:     client,
		cache:      cache,
		ttl:        ttl,
		batchSize:  batchSize,
		maxRetries: maxRetries,
		baseDelay:  500 * time.Millisecond,
	}
}

// Process embeds texts and returns one Item per input, in order. Empty
// texts get a zero vector without touching the provider. Identical texts
// in one call are computed once and fanned out.
func (p *BatchProcessor) Process(ctx context.Context, texts []string) ([]Item, error) {
	items := make([]Item, len(texts))
	if len(texts) == 0 {
		return items, nil
	}

	model := p.client.Model()
	dims := p.client.Dimensions()

	// indices of texts that still need a provider call, keyed by cache key
	// so duplicates within the call collapse to one computation
	pending := make(map[string][]int)
	var pendingOrder []string

	for i, text := range texts {
		if text == "" {
			items[i].Vector = make([]float32, dims)
			continue
		}
		key := CacheKey(text, model)
		if vec, ok := p.cacheGet(ctx, key); ok {
			items[i].Vector = vec
			continue
		}
		if _, seen := pending[key]; !seen {
			pendingOrder = append(pendingOrder, key)
		}
		pending[key] = append(pending[key], i)
	}

	// one representative text per distinct key
	for start := 0; start < len(pendingOrder); start += p.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + p.batchSize
		if end > len(pendingOrder) {
			end = len(pendingOrder)
		}
		keys := pendingOrder[start:end]
		batch := make([]string, len(keys))
		for j, key := range keys {
			batch[j] = texts[pending[key][0]]
		}

		vectors, err := p.embedWithRetry(ctx, batch)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			// scope the failure to this sub-batch
			perm := &PermanentError{Model: model, Attempts: p.maxRetries + 1, Err: err}
			for _, key := range keys {
				for _, idx := range pending[key] {
					items[idx].Err = perm
				}
			}
			continue
		}

		for j, key := range keys {
			vec := vectors[j]
			for _, idx := range pending[key] {
				items[idx].Vector = vec
			}
			p.cacheSet(ctx, key, vec)
		}
	}

	return items, nil
}

// EmbedBatch is the strict form of Process: any per-item failure fails the
// whole call.
func (p *BatchProcessor) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	items, err := p.Process(ctx, texts)
	if err != nil {
		return nil, err
	}
	vectors := make([][]float32, len(items))
	for i, item := range items {
		if item.Err != nil {
			return nil, item.Err
		}
		vectors[i] = item.Vector
	}
	return vectors, nil
}

// Embed embeds a single text through the same cache and retry path.
func (p *BatchProcessor) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Model returns the underlying client's model identifier.
func (p *BatchProcessor) Model() string {
	return p.client.Model()
}

// Dimensions returns the underlying client's vector dimension.
func (p *BatchProcessor) Dimensions() int {
	return p.client.Dimensions()
}

func (p *BatchProcessor) embedWithRetry(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			delay := p.baseDelay << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		vectors, err := p.client.EmbedBatch(ctx, batch)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (p *BatchProcessor) cacheGet(ctx context.Context, key string) ([]float32, bool) {
	if p.cache == nil {
		return nil, false
	}
	vec, ok, err := p.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	return vec, true
}

func (p *BatchProcessor) cacheSet(ctx context.Context, key string, vec []float32) {
	if p.cache == nil {
		return
	}
	// best effort: an unavailable cache never fails the run
	_ = p.cache.Set(ctx, key, vec, p.ttl)
}
