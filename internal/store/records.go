package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/nlmatters/semdex/internal/embedding"
)

// VectorRecord is one stored vector with its payload metadata.
type VectorRecord struct {
	ID      string
	Vector  []float32
	Payload map[string]string
}

// ScoredResult represents a search result with similarity score
type ScoredResult struct {
	ID      string
	Score   float32
	Payload map[string]string
}

// VectorStore provides vector storage and similarity search operations
type VectorStore struct {
	db          *DB
	collections *CollectionStore
}

// NewVectorStore creates a new vector store
func NewVectorStore(db *DB) *VectorStore {
	return &VectorStore{db: db, collections: NewCollectionStore(db)}
}

// Collections exposes the collection store
func (v *VectorStore) Collections() *CollectionStore {
	return v.collections
}

// Upsert inserts or replaces a record in a collection. Re-upserting an
// existing id replaces its vector and payload.
func (v *VectorStore) Upsert(collection string, rec VectorRecord) error {
	return v.UpsertBatch(collection, []VectorRecord{rec})
}

// UpsertBatch inserts or replaces multiple records in one transaction.
// Every vector must match the collection dimension.
func (v *VectorStore) UpsertBatch(collection string, recs []VectorRecord) error {
	if len(recs) == 0 {
		return nil
	}

	coll, err := v.collections.Get(collection)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if rec.ID == "" {
			return fmt.Errorf("record id is required")
		}
		if len(rec.Vector) != coll.Dimension {
			return &DimensionMismatchError{Collection: collection, Expected: coll.Dimension, Got: len(rec.Vector)}
		}
	}

	tx, err := v.db.BeginTx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO records (collection_id, id, vector, dimension, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)

	for i, rec := range recs {
		payload, err := marshalPayload(rec.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload %d: %w", i, err)
		}
		if _, err := stmt.Exec(coll.ID, rec.ID, vectorToBlob(rec.Vector), len(rec.Vector), payload, now); err != nil {
			return fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}

// Get retrieves a record by id
func (v *VectorStore) Get(collection, id string) (*VectorRecord, error) {
	coll, err := v.collections.Get(collection)
	if err != nil {
		return nil, err
	}

	var blob []byte
	var payload string
	err = v.db.sqlDB.QueryRow(
		"SELECT vector, payload FROM records WHERE collection_id = ? AND id = ?", coll.ID, id,
	).Scan(&blob, &payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("record not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	vector, err := blobToVector(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to decode vector: %w", err)
	}
	meta, err := unmarshalPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}

	return &VectorRecord{ID: id, Vector: vector, Payload: meta}, nil
}

// Delete removes records by id. Missing ids are skipped without error.
func (v *VectorStore) Delete(collection string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	coll, err := v.collections.Get(collection)
	if err != nil {
		return err
	}

	tx, err := v.db.BeginTx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("DELETE FROM records WHERE collection_id = ? AND id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.Exec(coll.ID, id); err != nil {
			return fmt.Errorf("failed to delete record %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Count returns the number of records in a collection
func (v *VectorStore) Count(collection string) (int, error) {
	coll, err := v.collections.Get(collection)
	if err != nil {
		return 0, err
	}
	var count int
	if err := v.db.sqlDB.QueryRow("SELECT COUNT(*) FROM records WHERE collection_id = ?", coll.ID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// Search performs similarity search over a collection using its metric.
// Filters are exact-match payload constraints applied during the scan,
// before any scoring.
func (v *VectorStore) Search(collection string, queryVector []float32, topK int, filters map[string]string) ([]ScoredResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	coll, err := v.collections.Get(collection)
	if err != nil {
		return nil, err
	}
	if len(queryVector) != coll.Dimension {
		return nil, &DimensionMismatchError{Collection: collection, Expected: coll.Dimension, Got: len(queryVector)}
	}

	// Full scan with in-scan filtering.
	// TODO: add ANN indexing once collections outgrow brute force
	rows, err := v.db.sqlDB.Query(
		"SELECT id, vector, payload FROM records WHERE collection_id = ?", coll.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var results []ScoredResult

	for rows.Next() {
		var id string
		var blob []byte
		var payloadJSON string

		if err := rows.Scan(&id, &blob, &payloadJSON); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		payload, err := unmarshalPayload(payloadJSON)
		if err != nil {
			continue // Skip malformed payloads
		}
		if !matchesFilters(payload, filters) {
			continue
		}

		vector, err := blobToVector(blob)
		if err != nil || len(vector) != len(queryVector) {
			continue
		}

		results = append(results, ScoredResult{
			ID:      id,
			Score:   scoreByMetric(coll.Metric, queryVector, vector),
			Payload: payload,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	sortResults(results)

	if len(results) > topK {
		results = results[:topK]
	}

	return results, nil
}

// ListByFilters returns records matching the payload filters without any
// vector scoring, ordered by id.
func (v *VectorStore) ListByFilters(collection string, filters map[string]string, limit int) ([]ScoredResult, error) {
	coll, err := v.collections.Get(collection)
	if err != nil {
		return nil, err
	}

	rows, err := v.db.sqlDB.Query(
		"SELECT id, payload FROM records WHERE collection_id = ? ORDER BY id", coll.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var results []ScoredResult
	for rows.Next() {
		var id string
		var payloadJSON string
		if err := rows.Scan(&id, &payloadJSON); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		payload, err := unmarshalPayload(payloadJSON)
		if err != nil {
			continue
		}
		if !matchesFilters(payload, filters) {
			continue
		}
		results = append(results, ScoredResult{ID: id, Payload: payload})
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, rows.Err()
}

func matchesFilters(payload, filters map[string]string) bool {
	for key, want := range filters {
		if payload[key] != want {
			return false
		}
	}
	return true
}

// scoreByMetric maps the collection metric to a similarity-like score
// where higher is always better.
func scoreByMetric(metric string, query, vector []float32) float32 {
	switch metric {
	case MetricDot:
		return embedding.DotProduct(query, vector)
	case MetricL2:
		return 1 / (1 + embedding.L2Distance(query, vector))
	default:
		return embedding.Similarity(query, vector)
	}
}

// Helper functions for vector serialization

// vectorToBlob converts a float32 slice to a little-endian binary blob
func vectorToBlob(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:i*4+4], math.Float32bits(v))
	}
	return blob
}

// blobToVector converts a binary blob back to a float32 slice
func blobToVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("blob size %d is not a multiple of 4", len(blob))
	}
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4 : i*4+4]))
	}
	return vector, nil
}

func marshalPayload(payload map[string]string) (string, error) {
	if len(payload) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalPayload(data string) (map[string]string, error) {
	if data == "" || data == "{}" {
		return map[string]string{}, nil
	}
	var payload map[string]string
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// sortResults sorts results by score descending, then id ascending for
// a stable order.
func sortResults(results []ScoredResult) {
	for i := 1; i < len(results); i++ {
		key := results[i]
		j := i - 1
		for j >= 0 && less(key, results[j]) {
			results[j+1] = results[j]
			j--
		}
		results[j+1] = key
	}
}

func less(a, b ScoredResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID < b.ID
}
