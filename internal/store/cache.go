package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nlmatters/semdex/internal/embedding"
)

// EmbeddingCache is a SQLite-backed embedding.Cache. Entries survive
// process restarts; expired rows are dropped lazily on read.
type EmbeddingCache struct {
	db *DB
}

// NewEmbeddingCache creates an embedding cache on the given database
func NewEmbeddingCache(db *DB) *EmbeddingCache {
	return &EmbeddingCache{db: db}
}

// Get returns the cached vector for key, if present and not expired.
// Backend failures are reported as embedding.ErrCacheUnavailable so the
// batch processor can fall back to direct computation.
func (c *EmbeddingCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	var blob []byte
	var expiresAt sql.NullString
	err := c.db.sqlDB.QueryRowContext(ctx,
		"SELECT vector, expires_at FROM embedding_cache WHERE key = ?", key,
	).Scan(&blob, &expiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %v", embedding.ErrCacheUnavailable, err)
	}

	if expiresAt.Valid && expiresAt.String != "" {
		exp, err := parseTimeString(expiresAt.String)
		if err == nil && !exp.IsZero() && time.Now().After(exp) {
			_, _ = c.db.sqlDB.ExecContext(ctx, "DELETE FROM embedding_cache WHERE key = ?", key)
			return nil, false, nil
		}
	}

	vector, err := blobToVector(blob)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", embedding.ErrCacheUnavailable, err)
	}
	return vector, true, nil
}

// Set stores a vector under key. Zero TTL means no expiry.
func (c *EmbeddingCache) Set(ctx context.Context, key string, vector []float32, ttl time.Duration) error {
	var expiresAt any
	if ttl != 0 {
		expiresAt = time.Now().Add(ttl).UTC().Format(time.RFC3339)
	}
	_, err := c.db.sqlDB.ExecContext(ctx, `
		INSERT OR REPLACE INTO embedding_cache (key, vector, dimension, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`, key, vectorToBlob(vector), len(vector), time.Now().UTC().Format(time.RFC3339), expiresAt)
	if err != nil {
		return fmt.Errorf("%w: %v", embedding.ErrCacheUnavailable, err)
	}
	return nil
}

// Delete removes a key. Deleting a missing key is a no-op.
func (c *EmbeddingCache) Delete(ctx context.Context, key string) error {
	if _, err := c.db.sqlDB.ExecContext(ctx, "DELETE FROM embedding_cache WHERE key = ?", key); err != nil {
		return fmt.Errorf("%w: %v", embedding.ErrCacheUnavailable, err)
	}
	return nil
}

// Purge removes all expired entries and returns the number removed.
func (c *EmbeddingCache) Purge(ctx context.Context) (int64, error) {
	res, err := c.db.sqlDB.ExecContext(ctx,
		"DELETE FROM embedding_cache WHERE expires_at IS NOT NULL AND expires_at < ?",
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	return res.RowsAffected()
}
