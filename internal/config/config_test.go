package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	if cfg.Embedding.Provider != "openai" {
		t.Errorf("Provider = %s, want openai", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("Model = %s", cfg.Embedding.Model)
	}
	if cfg.Embedding.Dimensions != 1536 {
		t.Errorf("Dimensions = %d", cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.Timeout.Std() != 30*time.Second {
		t.Errorf("Timeout = %v", cfg.Embedding.Timeout.Std())
	}
	if cfg.Chunking.Strategy != "sentence" || cfg.Chunking.ChunkSize != 800 || cfg.Chunking.Overlap != 100 {
		t.Errorf("Chunking = %+v", cfg.Chunking)
	}
	if cfg.Dedup.Threshold != 0.92 || cfg.Dedup.ShingleSize != 3 {
		t.Errorf("Dedup = %+v", cfg.Dedup)
	}
	if cfg.Search.DefaultTopK != 10 || cfg.Search.RRFConstant != 60 || cfg.Search.Collection != "chunks" || cfg.Search.Metric != "cosine" {
		t.Errorf("Search = %+v", cfg.Search)
	}
	if cfg.Ingest.MaxWorkers != 4 || len(cfg.Ingest.Include) == 0 {
		t.Errorf("Ingest = %+v", cfg.Ingest)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		cfg.ApplyDefaults()
		cfg.Embedding.APIKey = "test-key"
		return cfg
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing api key", func(c *Config) { c.Embedding.APIKey = "" }},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "acme" }},
		{"zero dimensions", func(c *Config) { c.Embedding.Dimensions = 0 }},
		{"oversized batch", func(c *Config) { c.Embedding.BatchSize = 5000 }},
		{"unknown strategy", func(c *Config) { c.Chunking.Strategy = "random" }},
		{"overlap >= chunk size", func(c *Config) { c.Chunking.Overlap = c.Chunking.ChunkSize }},
		{"threshold above one", func(c *Config) { c.Dedup.Threshold = 1.5 }},
		{"unknown metric", func(c *Config) { c.Search.Metric = "hamming" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() accepted invalid config")
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "semdex.yaml")

	content := `embedding:
  provider: openai
  api_key: test-key
  timeout: 45s
chunking:
  strategy: paragraph
  chunk_size: 500
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}
	if cfg.Embedding.Timeout.Std() != 45*time.Second {
		t.Errorf("Timeout = %v, want 45s", cfg.Embedding.Timeout.Std())
	}
	if cfg.Chunking.Strategy != "paragraph" || cfg.Chunking.ChunkSize != 500 {
		t.Errorf("Chunking = %+v", cfg.Chunking)
	}
	// defaults still fill the gaps
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("Model = %s", cfg.Embedding.Model)
	}
}

func TestLoadFromFileNotFound(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if !IsConfigNotFound(err) {
		t.Errorf("LoadFromFile(missing) error = %v, want ConfigNotFoundError", err)
	}
}

func TestWriteDefaultTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "semdex.yaml")

	created, err := WriteDefaultTemplate(path)
	if err != nil {
		t.Fatalf("WriteDefaultTemplate() error: %v", err)
	}
	if !created {
		t.Error("WriteDefaultTemplate() did not create the file")
	}

	// second call is a no-op
	created, err = WriteDefaultTemplate(path)
	if err != nil {
		t.Fatalf("second WriteDefaultTemplate() error: %v", err)
	}
	if created {
		t.Error("WriteDefaultTemplate() recreated an existing file")
	}

	// template parses and only fails validation on the placeholder key
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("template is not valid yaml: %v", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("template config invalid: %v", err)
	}
}

func TestDurationYAML(t *testing.T) {
	var cfg EmbeddingConfig
	if err := yaml.Unmarshal([]byte("timeout: 90s\n"), &cfg); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if cfg.Timeout.Std() != 90*time.Second {
		t.Errorf("Timeout = %v, want 90s", cfg.Timeout.Std())
	}

	// integer seconds also accepted
	if err := yaml.Unmarshal([]byte("timeout: 15\n"), &cfg); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if cfg.Timeout.Std() != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", cfg.Timeout.Std())
	}

	// unitless garbage rejected
	if err := yaml.Unmarshal([]byte("timeout: soon\n"), &cfg); err == nil {
		t.Error("Unmarshal() accepted an invalid duration")
	}

	out, err := yaml.Marshal(EmbeddingConfig{Timeout: Duration(2 * time.Minute)})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if want := "timeout: 2m0s"; !strings.Contains(string(out), want) {
		t.Errorf("Marshal() = %q, want substring %q", out, want)
	}
}
