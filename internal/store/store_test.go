package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nlmatters/semdex/internal/chunker"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "semdex.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "semdex.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	// Reopen must see the migrated schema and not re-apply it
	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer db.Close()

	version, err := db.getSchemaVersion()
	if err != nil {
		t.Fatalf("getSchemaVersion() error: %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("schema version = %d, want %d", version, CurrentSchemaVersion)
	}
}

func TestEnsureCollection(t *testing.T) {
	db := openTestDB(t)
	cs := NewCollectionStore(db)

	c1, err := cs.Ensure("chunks", 4, MetricCosine)
	if err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}
	c2, err := cs.Ensure("chunks", 4, MetricCosine)
	if err != nil {
		t.Fatalf("second Ensure() error: %v", err)
	}
	if c1.ID != c2.ID {
		t.Errorf("Ensure created a second collection: ids %d, %d", c1.ID, c2.ID)
	}

	_, err = cs.Ensure("chunks", 8, MetricCosine)
	var dim *DimensionMismatchError
	if !errors.As(err, &dim) {
		t.Fatalf("Ensure() with conflicting dimension = %v, want DimensionMismatchError", err)
	}
	if dim.Expected != 4 || dim.Got != 8 {
		t.Errorf("mismatch fields = %+v", dim)
	}

	if _, err := cs.Ensure("chunks", 4, MetricL2); err == nil {
		t.Error("Ensure() with conflicting metric did not fail")
	}

	if _, err := cs.Get("nonexistent"); err == nil {
		t.Error("Get(nonexistent) did not fail")
	} else {
		var nf *CollectionNotFoundError
		if !errors.As(err, &nf) {
			t.Errorf("Get(nonexistent) error = %v, want CollectionNotFoundError", err)
		}
	}
}

func TestUpsertGetDelete(t *testing.T) {
	db := openTestDB(t)
	vs := NewVectorStore(db)
	if _, err := vs.Collections().Ensure("chunks", 3, MetricCosine); err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}

	rec := VectorRecord{ID: "doc1#0", Vector: []float32{1, 0, 0}, Payload: map[string]string{"topic": "ai"}}
	if err := vs.Upsert("chunks", rec); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	got, err := vs.Get("chunks", "doc1#0")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Vector[0] != 1 || got.Payload["topic"] != "ai" {
		t.Errorf("Get() = %+v", got)
	}

	// Re-upsert replaces vector and payload
	rec.Vector = []float32{0, 1, 0}
	rec.Payload = map[string]string{"topic": "ml"}
	if err := vs.Upsert("chunks", rec); err != nil {
		t.Fatalf("re-Upsert() error: %v", err)
	}
	got, err = vs.Get("chunks", "doc1#0")
	if err != nil {
		t.Fatalf("Get() after re-upsert error: %v", err)
	}
	if got.Vector[1] != 1 || got.Payload["topic"] != "ml" {
		t.Errorf("re-upsert did not replace: %+v", got)
	}
	count, err := vs.Count("chunks")
	if err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}

	// Deleting a missing id is a no-op
	if err := vs.Delete("chunks", "doc1#0", "missing"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if count, _ = vs.Count("chunks"); count != 0 {
		t.Errorf("Count() after delete = %d, want 0", count)
	}
}

func TestUpsertDimensionMismatch(t *testing.T) {
	db := openTestDB(t)
	vs := NewVectorStore(db)
	if _, err := vs.Collections().Ensure("chunks", 3, MetricCosine); err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}

	err := vs.Upsert("chunks", VectorRecord{ID: "a", Vector: []float32{1, 0}})
	var dim *DimensionMismatchError
	if !errors.As(err, &dim) {
		t.Errorf("Upsert() error = %v, want DimensionMismatchError", err)
	}
}

func TestSearchOrderingAndFilters(t *testing.T) {
	db := openTestDB(t)
	vs := NewVectorStore(db)
	if _, err := vs.Collections().Ensure("chunks", 3, MetricCosine); err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}

	recs := []VectorRecord{
		{ID: "exact", Vector: []float32{1, 0, 0}, Payload: map[string]string{"lang": "en"}},
		{ID: "close", Vector: []float32{0.9, 0.1, 0}, Payload: map[string]string{"lang": "en"}},
		{ID: "far", Vector: []float32{0, 0, 1}, Payload: map[string]string{"lang": "de"}},
	}
	if err := vs.UpsertBatch("chunks", recs); err != nil {
		t.Fatalf("UpsertBatch() error: %v", err)
	}

	results, err := vs.Search("chunks", []float32{1, 0, 0}, 10, nil)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Search() = %d results, want 3", len(results))
	}
	if results[0].ID != "exact" || results[1].ID != "close" || results[2].ID != "far" {
		t.Errorf("ordering = %s, %s, %s", results[0].ID, results[1].ID, results[2].ID)
	}

	// topK truncation
	results, err = vs.Search("chunks", []float32{1, 0, 0}, 1, nil)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(results) != 1 || results[0].ID != "exact" {
		t.Errorf("topK=1 results = %+v", results)
	}

	// Payload filter excludes before scoring
	results, err = vs.Search("chunks", []float32{0, 0, 1}, 10, map[string]string{"lang": "en"})
	if err != nil {
		t.Fatalf("filtered Search() error: %v", err)
	}
	for _, r := range results {
		if r.Payload["lang"] != "en" {
			t.Errorf("filter leaked: %+v", r)
		}
	}
	if len(results) != 2 {
		t.Errorf("filtered Search() = %d results, want 2", len(results))
	}

	// Query dimension must match
	if _, err := vs.Search("chunks", []float32{1, 0}, 10, nil); err == nil {
		t.Error("Search() with wrong query dimension did not fail")
	}
}

func TestListByFilters(t *testing.T) {
	db := openTestDB(t)
	vs := NewVectorStore(db)
	if _, err := vs.Collections().Ensure("chunks", 2, MetricCosine); err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}
	recs := []VectorRecord{
		{ID: "b", Vector: []float32{1, 0}, Payload: map[string]string{"k": "x"}},
		{ID: "a", Vector: []float32{0, 1}, Payload: map[string]string{"k": "x"}},
		{ID: "c", Vector: []float32{1, 1}, Payload: map[string]string{"k": "y"}},
	}
	if err := vs.UpsertBatch("chunks", recs); err != nil {
		t.Fatalf("UpsertBatch() error: %v", err)
	}

	results, err := vs.ListByFilters("chunks", map[string]string{"k": "x"}, 0)
	if err != nil {
		t.Fatalf("ListByFilters() error: %v", err)
	}
	if len(results) != 2 || results[0].ID != "a" || results[1].ID != "b" {
		t.Errorf("ListByFilters() = %+v", results)
	}
}

func TestReplaceDocument(t *testing.T) {
	db := openTestDB(t)
	cs := NewChunkStore(db)

	first := []chunker.Chunk{
		{DocumentID: "doc1", ChunkIndex: 0, Text: "alpha", StartOffset: 0, EndOffset: 5, CharCount: 5, WordCount: 1, SentenceCount: 1, Strategy: chunker.StrategySentence},
		{DocumentID: "doc1", ChunkIndex: 1, Text: "beta", StartOffset: 6, EndOffset: 10, CharCount: 4, WordCount: 1, SentenceCount: 1, Strategy: chunker.StrategySentence},
	}
	if err := cs.ReplaceDocument("doc1", first); err != nil {
		t.Fatalf("ReplaceDocument() error: %v", err)
	}

	// Replace with a smaller set; the old second chunk must go away
	second := []chunker.Chunk{
		{DocumentID: "doc1", ChunkIndex: 0, Text: "gamma", StartOffset: 0, EndOffset: 5, CharCount: 5, WordCount: 1, SentenceCount: 1, Strategy: chunker.StrategySentence, Metadata: map[string]string{"v": "2"}},
	}
	if err := cs.ReplaceDocument("doc1", second); err != nil {
		t.Fatalf("second ReplaceDocument() error: %v", err)
	}

	chunks, err := cs.ListDocument("doc1")
	if err != nil {
		t.Fatalf("ListDocument() error: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Text != "gamma" {
		t.Fatalf("ListDocument() = %+v", chunks)
	}
	if chunks[0].Metadata["v"] != "2" {
		t.Errorf("metadata not round-tripped: %v", chunks[0].Metadata)
	}

	got, err := cs.Get(ChunkID("doc1", 0))
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Text != "gamma" || got.Strategy != chunker.StrategySentence {
		t.Errorf("Get() = %+v", got)
	}

	docs, err := cs.Documents()
	if err != nil {
		t.Fatalf("Documents() error: %v", err)
	}
	if len(docs) != 1 || docs[0] != "doc1" {
		t.Errorf("Documents() = %v", docs)
	}

	if err := cs.DeleteDocument("doc1"); err != nil {
		t.Fatalf("DeleteDocument() error: %v", err)
	}
	if chunks, _ := cs.ListDocument("doc1"); len(chunks) != 0 {
		t.Errorf("chunks survived delete: %+v", chunks)
	}
}

func TestEmbeddingCacheRoundTrip(t *testing.T) {
	db := openTestDB(t)
	cache := NewEmbeddingCache(db)
	ctx := context.Background()

	if _, ok, err := cache.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("Get(missing) = %v, %v", ok, err)
	}

	if err := cache.Set(ctx, "k", []float32{1.5, -2}, 0); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	vec, ok, err := cache.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v, %v", vec, ok, err)
	}
	if vec[0] != 1.5 || vec[1] != -2 {
		t.Errorf("Get() vector = %v", vec)
	}

	// Expired entries are dropped on read
	if err := cache.Set(ctx, "short", []float32{1}, -time.Second); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if _, ok, _ := cache.Get(ctx, "short"); ok {
		t.Error("expired entry still returned")
	}

	if err := cache.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, ok, _ := cache.Get(ctx, "k"); ok {
		t.Error("deleted entry still returned")
	}
}

func TestDBStats(t *testing.T) {
	db := openTestDB(t)
	vs := NewVectorStore(db)
	if _, err := vs.Collections().Ensure("chunks", 2, MetricCosine); err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}
	if err := vs.Upsert("chunks", VectorRecord{ID: "a", Vector: []float32{1, 0}}); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	stats, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.CollectionCount != 1 || stats.VectorCount != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
}
