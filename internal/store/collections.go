package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Supported distance metrics for a collection.
const (
	MetricCosine = "cosine"
	MetricDot    = "dot"
	MetricL2     = "l2"
)

// Collection is a named vector namespace with a fixed dimension and metric.
type Collection struct {
	ID        int64
	Name      string
	Dimension int
	Metric    string
	CreatedAt time.Time
}

// DimensionMismatchError reports a vector or collection whose dimension
// conflicts with the collection's declared dimension.
type DimensionMismatchError struct {
	Collection string
	Expected   int
	Got        int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("collection %s expects dimension %d, got %d", e.Collection, e.Expected, e.Got)
}

// CollectionNotFoundError reports a lookup against a collection that
// does not exist.
type CollectionNotFoundError struct {
	Name string
}

func (e *CollectionNotFoundError) Error() string {
	return fmt.Sprintf("collection not found: %s", e.Name)
}

// CollectionStore manages vector collections
type CollectionStore struct {
	db *DB
}

// NewCollectionStore creates a new collection store
func NewCollectionStore(db *DB) *CollectionStore {
	return &CollectionStore{db: db}
}

// Ensure creates the collection if it does not exist, or returns the
// existing one. An existing collection with a different dimension yields
// a DimensionMismatchError; a different metric is a plain error.
func (s *CollectionStore) Ensure(name string, dimension int, metric string) (*Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("collection dimension must be positive, got %d", dimension)
	}
	switch metric {
	case MetricCosine, MetricDot, MetricL2:
	case "":
		metric = MetricCosine
	default:
		return nil, fmt.Errorf("unsupported metric: %s", metric)
	}

	existing, err := s.Get(name)
	if err == nil {
		if existing.Dimension != dimension {
			return nil, &DimensionMismatchError{Collection: name, Expected: existing.Dimension, Got: dimension}
		}
		if existing.Metric != metric {
			return nil, fmt.Errorf("collection %s uses metric %s, requested %s", name, existing.Metric, metric)
		}
		return existing, nil
	}
	var notFound *CollectionNotFoundError
	if !errors.As(err, &notFound) {
		return nil, err
	}

	now := time.Now().UTC()
	res, err := s.db.sqlDB.Exec(
		"INSERT INTO collections (name, dimension, metric, created_at) VALUES (?, ?, ?, ?)",
		name, dimension, metric, now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get collection id: %w", err)
	}

	return &Collection{ID: id, Name: name, Dimension: dimension, Metric: metric, CreatedAt: now}, nil
}

// Get returns a collection by name
func (s *CollectionStore) Get(name string) (*Collection, error) {
	var c Collection
	var createdAt string
	err := s.db.sqlDB.QueryRow(
		"SELECT id, name, dimension, metric, created_at FROM collections WHERE name = ?", name,
	).Scan(&c.ID, &c.Name, &c.Dimension, &c.Metric, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &CollectionNotFoundError{Name: name}
		}
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	c.CreatedAt, err = parseTimeString(createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse collection timestamp: %w", err)
	}
	return &c, nil
}

// List returns all collections ordered by name
func (s *CollectionStore) List() ([]*Collection, error) {
	rows, err := s.db.sqlDB.Query("SELECT id, name, dimension, metric, created_at FROM collections ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var out []*Collection
	for rows.Next() {
		var c Collection
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.Dimension, &c.Metric, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		c.CreatedAt, err = parseTimeString(createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse collection timestamp: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// Delete removes a collection and all its records. Missing collections
// are a no-op.
func (s *CollectionStore) Delete(name string) error {
	tx, err := s.db.BeginTx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"DELETE FROM records WHERE collection_id IN (SELECT id FROM collections WHERE name = ?)", name,
	); err != nil {
		return fmt.Errorf("failed to delete collection records: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM collections WHERE name = ?", name); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return tx.Commit()
}
