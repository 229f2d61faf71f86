package search

import (
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// ChunkDoc is the keyword-index view of a chunk.
type ChunkDoc struct {
	Content    string `json:"content"`
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
}

// KeywordHit is one keyword-relevance match.
type KeywordHit struct {
	ID    string
	Score float64
}

// KeywordIndex is a bleve full-text index over chunk text.
type KeywordIndex struct {
	index bleve.Index
}

// CreateKeywordIndex creates a fresh index at dir, replacing any existing one.
func CreateKeywordIndex(dir string) (*KeywordIndex, error) {
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("reset keyword index dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create keyword index dir: %w", err)
	}
	index, err := bleve.New(dir, buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}
	return &KeywordIndex{index: index}, nil
}

// OpenKeywordIndex opens an existing index at dir, creating it if absent.
func OpenKeywordIndex(dir string) (*KeywordIndex, error) {
	index, err := bleve.Open(dir)
	if err == bleve.ErrorIndexPathDoesNotExist {
		return CreateKeywordIndex(dir)
	}
	if err != nil {
		return nil, fmt.Errorf("open bleve index: %w", err)
	}
	return &KeywordIndex{index: index}, nil
}

// IndexChunk adds or replaces a chunk in the index
func (k *KeywordIndex) IndexChunk(id string, doc ChunkDoc) error {
	return k.index.Index(id, doc)
}

// IndexBatch adds or replaces multiple chunks in one bleve batch
func (k *KeywordIndex) IndexBatch(docs map[string]ChunkDoc) error {
	batch := k.index.NewBatch()
	for id, doc := range docs {
		if err := batch.Index(id, doc); err != nil {
			return fmt.Errorf("batch index %s: %w", id, err)
		}
	}
	return k.index.Batch(batch)
}

// Delete removes a chunk by id
func (k *KeywordIndex) Delete(id string) error {
	return k.index.Delete(id)
}

// DeleteDocument removes all chunks belonging to a document
func (k *KeywordIndex) DeleteDocument(documentID string) error {
	query := bleve.NewTermQuery(documentID)
	query.SetField("document_id")
	req := bleve.NewSearchRequestOptions(query, 1000, 0, false)
	for {
		res, err := k.index.Search(req)
		if err != nil {
			return fmt.Errorf("find document chunks: %w", err)
		}
		if len(res.Hits) == 0 {
			return nil
		}
		batch := k.index.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := k.index.Batch(batch); err != nil {
			return fmt.Errorf("delete document chunks: %w", err)
		}
	}
}

// Search runs a keyword query and returns ranked chunk ids
func (k *KeywordIndex) Search(query string, topK int) ([]KeywordHit, error) {
	if topK <= 0 {
		topK = 10
	}

	contentQuery := bleve.NewMatchQuery(query)
	contentQuery.SetField("content")
	contentQuery.SetBoost(1.0)
	titleQuery := bleve.NewMatchQuery(query)
	titleQuery.SetField("title")
	titleQuery.SetBoost(2.0)
	disjunction := bleve.NewDisjunctionQuery(contentQuery, titleQuery)

	req := bleve.NewSearchRequestOptions(disjunction, topK, 0, false)

	res, err := k.index.Search(req)
	if err != nil {
		return nil, err
	}

	hits := make([]KeywordHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		hits = append(hits, KeywordHit{ID: hit.ID, Score: hit.Score})
	}
	return hits, nil
}

// Count returns the number of indexed chunks
func (k *KeywordIndex) Count() (uint64, error) {
	return k.index.DocCount()
}

// Close closes the underlying index
func (k *KeywordIndex) Close() error {
	return k.index.Close()
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = "en"
	indexMapping.DefaultField = "content"

	docMapping := bleve.NewDocumentMapping()

	contentField := bleve.NewTextFieldMapping()
	contentField.Store = false
	contentField.Index = true
	docMapping.AddFieldMappingsAt("content", contentField)

	titleField := bleve.NewTextFieldMapping()
	titleField.Store = true
	titleField.Index = true
	docMapping.AddFieldMappingsAt("title", titleField)

	docIDField := bleve.NewTextFieldMapping()
	docIDField.Store = true
	docIDField.Index = true
	docIDField.Analyzer = "keyword"
	docMapping.AddFieldMappingsAt("document_id", docIDField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}
