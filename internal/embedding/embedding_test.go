package embedding

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nlmatters/semdex/internal/config"
)

// mockClient returns deterministic vectors derived from the text length
// and records every batch it receives.
type mockClient struct {
	dims    int
	calls   int
	batches [][]string
	failFor map[string]error
}

func newMockClient(dims int) *mockClient {
	return &mockClient{dims: dims, failFor: make(map[string]error)}
}

func (m *mockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *mockClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls++
	batch := append([]string(nil), texts...)
	m.batches = append(m.batches, batch)
	for _, t := range texts {
		if err := m.failFor[t]; err != nil {
			return nil, err
		}
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec := make([]float32, m.dims)
		vec[0] = float32(len(t))
		out[i] = vec
	}
	return out, nil
}

func (m *mockClient) Model() string   { return "mock-model" }
func (m *mockClient) Dimensions() int { return m.dims }

func testConfig() *config.EmbeddingConfig {
	return &config.EmbeddingConfig{
		Provider:   "openai",
		Model:      "mock-model",
		Dimensions: 4,
		BatchSize:  32,
		MaxRetries: 2,
	}
}

func newTestProcessor(client Client, cache Cache) *BatchProcessor {
	p := NewBatchProcessor(client, cache, testConfig(), time.Hour)
	p.baseDelay = time.Millisecond
	return p
}

func TestCacheKeyDistinguishesModelAndText(t *testing.T) {
	a := CacheKey("hello", "model-a")
	if a != CacheKey("hello", "model-a") {
		t.Error("same inputs produced different keys")
	}
	if a == CacheKey("hello", "model-b") {
		t.Error("different models produced the same key")
	}
	if a == CacheKey("hellx", "model-a") {
		t.Error("different texts produced the same key")
	}
	// the separator keeps (text, model) boundaries unambiguous
	if CacheKey("ab", "c") == CacheKey("a", "bc") {
		t.Error("boundary ambiguity in key derivation")
	}
}

func TestProcessEmptyTextZeroVector(t *testing.T) {
	client := newMockClient(4)
	p := newTestProcessor(client, NewMemoryCache())

	items, err := p.Process(context.Background(), []string{""})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if client.calls != 0 {
		t.Errorf("provider called %d times for empty text, want 0", client.calls)
	}
	if len(items) != 1 || items[0].Err != nil {
		t.Fatalf("unexpected items: %+v", items)
	}
	for _, v := range items[0].Vector {
		if v != 0 {
			t.Errorf("zero vector expected, got %v", items[0].Vector)
			break
		}
	}
	if len(items[0].Vector) != 4 {
		t.Errorf("zero vector has dimension %d, want 4", len(items[0].Vector))
	}
}

func TestProcessDeduplicatesWithinBatch(t *testing.T) {
	client := newMockClient(4)
	p := newTestProcessor(client, NewMemoryCache())

	items, err := p.Process(context.Background(), []string{"same text", "same text"})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("provider called %d times, want 1", client.calls)
	}
	if len(client.batches[0]) != 1 {
		t.Errorf("provider batch had %d texts, want 1", len(client.batches[0]))
	}
	if items[0].Err != nil || items[1].Err != nil {
		t.Fatalf("unexpected item errors: %+v", items)
	}
	if items[0].Vector[0] != items[1].Vector[0] {
		t.Error("duplicate inputs got different vectors")
	}
}

func TestProcessCacheHitSkipsProvider(t *testing.T) {
	client := newMockClient(4)
	p := newTestProcessor(client, NewMemoryCache())

	if _, err := p.Process(context.Background(), []string{"cached text"}); err != nil {
		t.Fatalf("first Process() error: %v", err)
	}
	if _, err := p.Process(context.Background(), []string{"cached text"}); err != nil {
		t.Fatalf("second Process() error: %v", err)
	}
	if client.calls != 1 {
		t.Errorf("provider called %d times across two runs, want 1", client.calls)
	}
}

func TestProcessWithoutCache(t *testing.T) {
	client := newMockClient(4)
	p := newTestProcessor(client, nil)

	if _, err := p.Process(context.Background(), []string{"text"}); err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if _, err := p.Process(context.Background(), []string{"text"}); err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if client.calls != 2 {
		t.Errorf("provider called %d times without cache, want 2", client.calls)
	}
}

// failingCache errors on every operation; embedding must still work.
type failingCache struct{}

func (failingCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	return nil, false, ErrCacheUnavailable
}
func (failingCache) Set(ctx context.Context, key string, vector []float32, ttl time.Duration) error {
	return ErrCacheUnavailable
}
func (failingCache) Delete(ctx context.Context, key string) error {
	return ErrCacheUnavailable
}

func TestProcessSurvivesCacheFailure(t *testing.T) {
	client := newMockClient(4)
	p := newTestProcessor(client, failingCache{})

	items, err := p.Process(context.Background(), []string{"text"})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if items[0].Err != nil {
		t.Fatalf("item error despite healthy provider: %v", items[0].Err)
	}
	if client.calls != 1 {
		t.Errorf("provider called %d times, want 1", client.calls)
	}
}

func TestProcessRetriesTransientFailure(t *testing.T) {
	client := newMockClient(4)
	p := newTestProcessor(client, nil)

	attempts := 0
	flaky := &flakyClient{mockClient: client, failUntil: 2, attempts: &attempts}
	p.client = flaky

	items, err := p.Process(context.Background(), []string{"text"})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if items[0].Err != nil {
		t.Fatalf("item failed despite retry budget: %v", items[0].Err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

type flakyClient struct {
	*mockClient
	failUntil int
	attempts  *int
}

func (f *flakyClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	*f.attempts++
	if *f.attempts < f.failUntil {
		return nil, &ProviderError{Provider: "mock", Err: fmt.Errorf("transient")}
	}
	return f.mockClient.EmbedBatch(ctx, texts)
}

func TestProcessPermanentFailureScopedToBatch(t *testing.T) {
	client := newMockClient(4)
	client.failFor["bad text"] = &ProviderError{Provider: "mock", Err: fmt.Errorf("rejected")}
	cfg := testConfig()
	cfg.BatchSize = 1
	cfg.MaxRetries = 0
	p := NewBatchProcessor(client, nil, cfg, 0)
	p.baseDelay = time.Millisecond

	items, err := p.Process(context.Background(), []string{"good one", "bad text", "good two"})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if items[0].Err != nil || items[2].Err != nil {
		t.Errorf("healthy items failed: %v, %v", items[0].Err, items[2].Err)
	}
	if items[1].Err == nil {
		t.Fatal("failing item did not report an error")
	}
	if !IsPermanent(items[1].Err) {
		t.Errorf("error not marked permanent: %v", items[1].Err)
	}
}

func TestProcessRespectsCancellation(t *testing.T) {
	client := newMockClient(4)
	p := newTestProcessor(client, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Process(ctx, []string{"text"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Process() error = %v, want context.Canceled", err)
	}
}

func TestMemoryCacheTTL(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	if err := c.Set(ctx, "k", []float32{1, 2}, time.Millisecond); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("expired entry still returned")
	}

	if err := c.Set(ctx, "k2", []float32{3}, 0); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	vec, ok, err := c.Get(ctx, "k2")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v, %v", vec, ok, err)
	}
	if vec[0] != 3 {
		t.Errorf("Get() vector = %v", vec)
	}

	if err := c.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete(missing) error: %v", err)
	}
}
