package store

import (
	"fmt"
	"time"

	"github.com/nlmatters/semdex/internal/chunker"
)

// ChunkStore persists pipeline chunks alongside their vectors so search
// hits can be resolved back to text.
type ChunkStore struct {
	db *DB
}

// NewChunkStore creates a new chunk store
func NewChunkStore(db *DB) *ChunkStore {
	return &ChunkStore{db: db}
}

// ChunkID derives the stable record id for a chunk.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s#%d", documentID, index)
}

// ReplaceDocument atomically replaces all chunks of a document. Old chunks
// are removed even when the new set is smaller.
func (s *ChunkStore) ReplaceDocument(documentID string, chunks []chunker.Chunk) error {
	tx, err := s.db.BeginTx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("failed to delete old chunks: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO chunks (id, document_id, chunk_index, content, start_offset, end_offset,
			char_count, word_count, sentence_count, strategy, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)

	for _, ch := range chunks {
		meta, err := marshalPayload(ch.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode chunk metadata: %w", err)
		}
		if _, err := stmt.Exec(
			ChunkID(documentID, ch.ChunkIndex), documentID, ch.ChunkIndex, ch.Text,
			ch.StartOffset, ch.EndOffset, ch.CharCount, ch.WordCount, ch.SentenceCount,
			string(ch.Strategy), meta, now,
		); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", ch.ChunkIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}

// Get returns a stored chunk by id
func (s *ChunkStore) Get(id string) (*chunker.Chunk, error) {
	row := s.db.sqlDB.QueryRow(`
		SELECT document_id, chunk_index, content, start_offset, end_offset,
			char_count, word_count, sentence_count, strategy, metadata
		FROM chunks WHERE id = ?
	`, id)

	var ch chunker.Chunk
	var strategy, metaJSON string
	err := row.Scan(&ch.DocumentID, &ch.ChunkIndex, &ch.Text, &ch.StartOffset, &ch.EndOffset,
		&ch.CharCount, &ch.WordCount, &ch.SentenceCount, &strategy, &metaJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk %s: %w", id, err)
	}
	ch.Strategy = chunker.Strategy(strategy)
	ch.Metadata, err = unmarshalPayload(metaJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode chunk metadata: %w", err)
	}
	return &ch, nil
}

// ListDocument returns all chunks of a document in index order
func (s *ChunkStore) ListDocument(documentID string) ([]chunker.Chunk, error) {
	rows, err := s.db.sqlDB.Query(`
		SELECT document_id, chunk_index, content, start_offset, end_offset,
			char_count, word_count, sentence_count, strategy, metadata
		FROM chunks WHERE document_id = ? ORDER BY chunk_index
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var out []chunker.Chunk
	for rows.Next() {
		var ch chunker.Chunk
		var strategy, metaJSON string
		if err := rows.Scan(&ch.DocumentID, &ch.ChunkIndex, &ch.Text, &ch.StartOffset, &ch.EndOffset,
			&ch.CharCount, &ch.WordCount, &ch.SentenceCount, &strategy, &metaJSON); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		ch.Strategy = chunker.Strategy(strategy)
		ch.Metadata, err = unmarshalPayload(metaJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to decode chunk metadata: %w", err)
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// DeleteDocument removes all chunks of a document
func (s *ChunkStore) DeleteDocument(documentID string) error {
	if _, err := s.db.sqlDB.Exec("DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// Documents returns the distinct document ids, ordered
func (s *ChunkStore) Documents() ([]string, error) {
	rows, err := s.db.sqlDB.Query("SELECT DISTINCT document_id FROM chunks ORDER BY document_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan document id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
