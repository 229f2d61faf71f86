package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/nlmatters/semdex/internal/chunker"
	"github.com/nlmatters/semdex/internal/config"
	"github.com/nlmatters/semdex/internal/dedup"
	"github.com/nlmatters/semdex/internal/embedding"
	"github.com/nlmatters/semdex/internal/pipeline"
	"github.com/nlmatters/semdex/internal/search"
	"github.com/nlmatters/semdex/internal/store"
)

// Ingestor runs the complete ingestion pipeline: clean, chunk, dedup,
// embed and store, with the keyword index kept in step.
type Ingestor struct {
	cfg        *config.Config
	db         *store.DB
	pipeline   *pipeline.Pipeline
	embedder   *embedding.BatchProcessor
	vectors    *store.VectorStore
	chunks     *store.ChunkStore
	keyword    *search.KeywordIndex
	collection string

	// guards sqlite and bleve writes from the worker pool
	storeMu sync.Mutex
}

// Result summarizes an ingestion run.
type Result struct {
	Documents int
	Chunks    int
	Duration  time.Duration
}

// KeywordIndexDir returns the bleve index directory next to the database.
func KeywordIndexDir(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), "keyword")
}

// NewIngestor wires the full pipeline from configuration.
func NewIngestor(cfg *config.Config) (*Ingestor, error) {
	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	client, err := embedding.NewClient(&cfg.Embedding)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	var cache embedding.Cache
	if cfg.Cache.Enabled {
		cache = store.NewEmbeddingCache(db)
	}
	embedder := embedding.NewBatchProcessor(client, cache, &cfg.Embedding, cfg.Cache.TTL.Std())

	strategy, err := chunker.ParseStrategy(cfg.Chunking.Strategy)
	if err != nil {
		db.Close()
		return nil, err
	}
	chunkOpts := chunker.Options{
		Strategy:          strategy,
		ChunkSize:         cfg.Chunking.ChunkSize,
		Overlap:           cfg.Chunking.Overlap,
		SemanticThreshold: cfg.Chunking.SemanticThreshold,
	}
	ch, err := chunker.NewSemantic(chunkOpts, embedder)
	if err != nil {
		db.Close()
		return nil, err
	}

	pipe := pipeline.New(ch, dedup.New(cfg.Dedup.Threshold, cfg.Dedup.ShingleSize))

	vectors := store.NewVectorStore(db)
	if _, err := vectors.Collections().Ensure(cfg.Search.Collection, client.Dimensions(), cfg.Search.Metric); err != nil {
		db.Close()
		return nil, err
	}

	keyword, err := search.OpenKeywordIndex(KeywordIndexDir(cfg.Database.Path))
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Ingestor{
		cfg:        cfg,
		db:         db,
		pipeline:   pipe,
		embedder:   embedder,
		vectors:    vectors,
		chunks:     store.NewChunkStore(db),
		keyword:    keyword,
		collection: cfg.Search.Collection,
	}, nil
}

// Embedder returns the batch processor, shared with the search engine.
func (ing *Ingestor) Embedder() *embedding.BatchProcessor {
	return ing.embedder
}

// Stores returns the vector and chunk stores for direct access.
func (ing *Ingestor) Stores() (*store.VectorStore, *store.ChunkStore) {
	return ing.vectors, ing.chunks
}

// KeywordIndex returns the keyword index.
func (ing *Ingestor) KeywordIndex() *search.KeywordIndex {
	return ing.keyword
}

// DB returns the underlying database.
func (ing *Ingestor) DB() *store.DB {
	return ing.db
}

// IngestDirectory ingests every file under root matching the configured
// include and exclude patterns. Per-file failures are collected; the run
// keeps going and reports them as an IngestWarning at the end.
func (ing *Ingestor) IngestDirectory(ctx context.Context, root string, reporter ProgressReporter) (*Result, error) {
	start := time.Now()

	files, err := DiscoverFiles(root, ing.cfg.Ingest.Include, ing.cfg.Ingest.Exclude)
	if err != nil {
		return nil, err
	}

	if reporter != nil {
		reporter.Start(len(files))
		defer reporter.Finish()
	}

	workers := ing.cfg.Ingest.MaxWorkers
	if workers <= 0 {
		workers = 1
	}

	collector := newErrorCollector()
	result := &Result{}
	var resultMu sync.Mutex

	jobs := make(chan string, workers*2)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rel := range jobs {
				stored, err := ing.ingestFile(ctx, root, rel)
				if err != nil {
					collector.Add(rel, err)
				} else {
					resultMu.Lock()
					result.Documents++
					result.Chunks += stored
					resultMu.Unlock()
				}
				if reporter != nil {
					reporter.Increment()
				}
			}
		}()
	}

dispatch:
	for _, rel := range files {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- rel:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	return result, collector.Err()
}

func (ing *Ingestor) ingestFile(ctx context.Context, root, rel string) (int, error) {
	abs := filepath.Join(root, filepath.FromSlash(rel))
	content, err := os.ReadFile(abs)
	if err != nil {
		return 0, err
	}
	metadata := map[string]string{
		"path": rel,
		"ext":  filepath.Ext(rel),
	}
	return ing.IngestDocument(ctx, rel, string(content), metadata)
}

// IngestDocument replaces a document end to end: existing chunks, vectors
// and keyword entries are removed before the new set is stored. Chunks
// whose embedding failed permanently are skipped and reported.
func (ing *Ingestor) IngestDocument(ctx context.Context, documentID, text string, metadata map[string]string) (int, error) {
	chunks, err := ing.pipeline.Process(ctx, documentID, text, metadata)
	if err != nil {
		return 0, err
	}

	if len(chunks) == 0 {
		return 0, ing.DeleteDocument(documentID)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	items, err := ing.embedder.Process(ctx, texts)
	if err != nil {
		return 0, err
	}

	// keep the surviving chunks contiguous from 0 even when some failed
	kept := make([]chunker.Chunk, 0, len(chunks))
	vectors := make([][]float32, 0, len(chunks))
	var failed int
	for i, item := range items {
		if item.Err != nil {
			failed++
			continue
		}
		ch := chunks[i]
		ch.ChunkIndex = len(kept)
		kept = append(kept, ch)
		vectors = append(vectors, item.Vector)
	}

	records := make([]store.VectorRecord, 0, len(kept))
	docs := make(map[string]search.ChunkDoc, len(kept))
	for i, ch := range kept {
		id := store.ChunkID(documentID, ch.ChunkIndex)
		records = append(records, store.VectorRecord{
			ID:      id,
			Vector:  vectors[i],
			Payload: chunkPayload(ch),
		})
		docs[id] = search.ChunkDoc{
			Content:    ch.Text,
			DocumentID: documentID,
			Title:      metadata["path"],
		}
	}

	ing.storeMu.Lock()
	defer ing.storeMu.Unlock()

	if err := ing.removeDocumentLocked(documentID); err != nil {
		return 0, err
	}
	if err := ing.chunks.ReplaceDocument(documentID, kept); err != nil {
		return 0, err
	}
	if err := ing.vectors.UpsertBatch(ing.collection, records); err != nil {
		return 0, err
	}
	if err := ing.keyword.IndexBatch(docs); err != nil {
		return 0, err
	}

	if failed > 0 {
		return len(kept), fmt.Errorf("%d of %d chunks failed to embed", failed, len(chunks))
	}
	return len(kept), nil
}

// DeleteDocument removes a document's chunks, vectors and keyword entries.
func (ing *Ingestor) DeleteDocument(documentID string) error {
	ing.storeMu.Lock()
	defer ing.storeMu.Unlock()
	return ing.removeDocumentLocked(documentID)
}

func (ing *Ingestor) removeDocumentLocked(documentID string) error {
	old, err := ing.chunks.ListDocument(documentID)
	if err != nil {
		return err
	}
	if len(old) > 0 {
		ids := make([]string, len(old))
		for i, ch := range old {
			ids[i] = store.ChunkID(documentID, ch.ChunkIndex)
		}
		if err := ing.vectors.Delete(ing.collection, ids...); err != nil {
			return err
		}
	}
	if err := ing.chunks.DeleteDocument(documentID); err != nil {
		return err
	}
	return ing.keyword.DeleteDocument(documentID)
}

// Close releases the keyword index and database.
func (ing *Ingestor) Close() error {
	kerr := ing.keyword.Close()
	derr := ing.db.Close()
	if kerr != nil {
		return kerr
	}
	return derr
}

func chunkPayload(ch chunker.Chunk) map[string]string {
	payload := make(map[string]string, len(ch.Metadata)+3)
	for k, v := range ch.Metadata {
		payload[k] = v
	}
	payload["document_id"] = ch.DocumentID
	payload["chunk_index"] = strconv.Itoa(ch.ChunkIndex)
	payload["strategy"] = string(ch.Strategy)
	return payload
}
