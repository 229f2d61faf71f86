package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	Cache     CacheConfig     `yaml:"cache,omitempty"`
	Chunking  ChunkingConfig  `yaml:"chunking,omitempty"`
	Dedup     DedupConfig     `yaml:"dedup,omitempty"`
	Database  DatabaseConfig  `yaml:"database,omitempty"`
	Search    SearchConfig    `yaml:"search,omitempty"`
	Ingest    IngestConfig    `yaml:"ingest,omitempty"`
}

// EmbeddingConfig holds embedding provider configuration
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "openai"
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint,omitempty"`
	Model    string `yaml:"model"`

	Dimensions int      `yaml:"dimensions"`            // vector dimension for the model
	BatchSize  int      `yaml:"batch_size"`            // texts per provider call
	Timeout    Duration `yaml:"timeout,omitempty"`     // per provider call
	MaxRetries int      `yaml:"max_retries,omitempty"` // attempts per batch before giving up
}

// CacheConfig holds embedding cache configuration
type CacheConfig struct {
	Enabled bool     `yaml:"enabled"`
	TTL     Duration `yaml:"ttl,omitempty"` // zero means no expiry
}

// ChunkingConfig holds text chunking configuration
type ChunkingConfig struct {
	Strategy          string  `yaml:"strategy,omitempty"`           // sentence | paragraph | fixed | semantic
	ChunkSize         int     `yaml:"chunk_size,omitempty"`         // target chunk size in characters
	Overlap           int     `yaml:"overlap,omitempty"`            // overlap between consecutive chunks
	SemanticThreshold float64 `yaml:"semantic_threshold,omitempty"` // similarity floor for semantic merging
}

// DedupConfig holds near-duplicate detection configuration
type DedupConfig struct {
	Threshold   float64 `yaml:"threshold,omitempty"`    // Jaccard similarity at or above which a chunk is dropped
	ShingleSize int     `yaml:"shingle_size,omitempty"` // words per shingle
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	// Path to SQLite database file
	// If empty, uses ~/.semdex/data/semdex.db
	Path string `yaml:"path,omitempty"`
}

// SearchConfig holds search-specific configuration
type SearchConfig struct {
	DefaultTopK int    `yaml:"default_top_k,omitempty"` // default number of results
	RRFConstant int    `yaml:"rrf_constant,omitempty"`  // k in 1/(k+rank) fusion
	Collection  string `yaml:"collection,omitempty"`    // vector collection name
	Metric      string `yaml:"metric,omitempty"`        // cosine | dot | l2
}

// IngestConfig holds ingestion configuration
type IngestConfig struct {
	MaxWorkers int      `yaml:"max_workers,omitempty"` // concurrent document pipelines
	Include    []string `yaml:"include,omitempty"`     // doublestar glob patterns
	Exclude    []string `yaml:"exclude,omitempty"`     // doublestar glob patterns
}

// Load loads configuration from the default config file
// Default location: ~/.semdex/config/semdex.yaml
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".semdex", "config", "semdex.yaml")
	return LoadFromFile(configPath)
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			homeDir, _ := os.UserHomeDir()
			defaultPath := filepath.Join(homeDir, ".semdex", "config", "semdex.yaml")
			return nil, &ConfigNotFoundError{
				RequestedPath: path,
				DefaultPath:   defaultPath,
			}
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// ConfigNotFoundError is returned when config file is not found
type ConfigNotFoundError struct {
	RequestedPath string
	DefaultPath   string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("config file not found at: %s\n\nDefault location: %s\n\nYou can:\n"+
		"  1. Create the config file at the default location\n"+
		"  2. Specify a custom path with -config flag",
		e.RequestedPath, e.DefaultPath)
}

// IsConfigNotFound checks if error is config not found
func IsConfigNotFound(err error) bool {
	_, ok := err.(*ConfigNotFoundError)
	return ok
}

// expandPath expands ~ and $HOME to the user's home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "$HOME/") || path == "$HOME" {
		homeDir := os.Getenv("HOME")
		if homeDir == "" {
			var err error
			homeDir, err = os.UserHomeDir()
			if err != nil {
				return path
			}
		}
		if path == "$HOME" {
			return homeDir
		}
		return filepath.Join(homeDir, path[6:])
	}

	if strings.HasPrefix(path, "~/") || path == "~" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return homeDir
		}
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

// ApplyDefaults sets default values for missing configuration
func (c *Config) ApplyDefaults() {
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions == 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.BatchSize == 0 {
		c.Embedding.BatchSize = 32
	}
	if c.Embedding.Timeout == 0 {
		c.Embedding.Timeout = Duration(30 * time.Second)
	}
	if c.Embedding.MaxRetries == 0 {
		c.Embedding.MaxRetries = 3
	}

	if c.Cache.TTL == 0 {
		c.Cache.TTL = Duration(7 * 24 * time.Hour)
	}

	if c.Chunking.Strategy == "" {
		c.Chunking.Strategy = "sentence"
	}
	if c.Chunking.ChunkSize == 0 {
		c.Chunking.ChunkSize = 800
	}
	if c.Chunking.Overlap == 0 {
		c.Chunking.Overlap = 100
	}
	if c.Chunking.SemanticThreshold == 0 {
		c.Chunking.SemanticThreshold = 0.75
	}

	if c.Dedup.Threshold == 0 {
		c.Dedup.Threshold = 0.92
	}
	if c.Dedup.ShingleSize == 0 {
		c.Dedup.ShingleSize = 3
	}

	if c.Database.Path != "" {
		c.Database.Path = expandPath(c.Database.Path)
	}

	if c.Search.DefaultTopK == 0 {
		c.Search.DefaultTopK = 10
	}
	if c.Search.RRFConstant == 0 {
		c.Search.RRFConstant = 60
	}
	if c.Search.Collection == "" {
		c.Search.Collection = "chunks"
	}
	if c.Search.Metric == "" {
		c.Search.Metric = "cosine"
	}

	if c.Ingest.MaxWorkers == 0 {
		c.Ingest.MaxWorkers = 4
	}
	if len(c.Ingest.Include) == 0 {
		c.Ingest.Include = []string{"**/*.txt", "**/*.md"}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "openai":
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("openai provider requires api_key")
		}
	default:
		return fmt.Errorf("unsupported embedding provider: %s", c.Embedding.Provider)
	}

	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive, got: %d", c.Embedding.Dimensions)
	}
	if c.Embedding.BatchSize <= 0 || c.Embedding.BatchSize > 2048 {
		return fmt.Errorf("batch_size must be between 1 and 2048, got: %d", c.Embedding.BatchSize)
	}

	switch c.Chunking.Strategy {
	case "sentence", "paragraph", "fixed", "semantic":
	default:
		return fmt.Errorf("unsupported chunking strategy: %s", c.Chunking.Strategy)
	}
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got: %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("overlap must be in [0, chunk_size), got: %d", c.Chunking.Overlap)
	}

	if c.Dedup.Threshold < 0 || c.Dedup.Threshold > 1 {
		return fmt.Errorf("dedup threshold must be in [0,1], got: %v", c.Dedup.Threshold)
	}

	switch c.Search.Metric {
	case "cosine", "dot", "l2":
	default:
		return fmt.Errorf("unsupported distance metric: %s", c.Search.Metric)
	}

	return nil
}

// Save saves the configuration to the default location
func (c *Config) Save() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".semdex", "config")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath := filepath.Join(configDir, "semdex.yaml")
	return c.SaveToFile(configPath)
}

// SaveToFile saves the configuration to a specific file
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

const defaultConfigTemplate = `# semdex Configuration
#
# Copy and edit this file for your environment.
# Default location: $HOME/.semdex/config/semdex.yaml

embedding:
  provider: openai
  api_key: your-openai-api-key
  model: text-embedding-3-small
  dimensions: 1536
  batch_size: 32
  timeout: 30s
  max_retries: 3

cache:
  enabled: true
  ttl: 168h

chunking:
  strategy: sentence
  chunk_size: 800
  overlap: 100
  semantic_threshold: 0.75

dedup:
  threshold: 0.92
  shingle_size: 3

search:
  default_top_k: 10
  rrf_constant: 60
  collection: chunks
  metric: cosine

ingest:
  max_workers: 4
  include:
    - "**/*.txt"
    - "**/*.md"
`

// WriteDefaultTemplate creates a default configuration file if it does not exist.
// It returns true if a file was created, false if it already existed.
func WriteDefaultTemplate(path string) (bool, error) {
	if path == "" {
		return false, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0644); err != nil {
		return false, fmt.Errorf("failed to write config template: %w", err)
	}

	return true, nil
}
