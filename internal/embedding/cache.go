package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Cache is a content-addressed store for previously computed vectors.
// A miss is not an error; it just signals the generator must compute.
// Concurrent writers to one key are safe: content hashing guarantees
// identical keys carry identical values, so last write wins.
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vector []float32, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CacheKey derives the cache key for a text under a model. It is a pure
// function of content and model: identical inputs always map to identical
// keys regardless of batch composition or call order.
func CacheKey(text, modelID string) string {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte{0})
	h.Write([]byte(modelID))
	return hex.EncodeToString(h.Sum(nil))
}

// MemoryCache is an in-process Cache with per-entry TTL.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	vector    []float32
	expiresAt time.Time // zero means no expiry
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

// Get returns the cached vector for key, if present and not expired.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	out := make([]float32, len(entry.vector))
	copy(out, entry.vector)
	return out, true, nil
}

// Set stores a vector under key with the given TTL. Zero TTL means no expiry.
func (c *MemoryCache) Set(ctx context.Context, key string, vector []float32, ttl time.Duration) error {
	stored := make([]float32, len(vector))
	copy(stored, vector)
	entry := memoryEntry{vector: stored}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

// Delete removes a key. Deleting a missing key is a no-op.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
