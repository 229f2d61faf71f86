package internal

import (
	"fmt"
	"os"

	"github.com/nlmatters/semdex/internal/config"
)

// LoadConfig reads the YAML config from the given path, falling back to
// the default location when the path is empty.
func LoadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

// PrintConfigExample writes a minimal example config to stderr.
func PrintConfigExample() {
	homeDir, _ := os.UserHomeDir()
	configPath := fmt.Sprintf("%s/.semdex/config/semdex.yaml", homeDir)

	fmt.Fprintf(os.Stderr, `Create a configuration file at %s:

# Embedding provider configuration (required)
embedding:
  provider: openai
  api_key: your-openai-api-key
  model: text-embedding-3-small
  dimensions: 1536
  batch_size: 32

# Embedding cache (content-addressed, survives restarts)
cache:
  enabled: true
  ttl: 168h

# Chunking: sentence | paragraph | fixed | semantic
chunking:
  strategy: sentence
  chunk_size: 800
  overlap: 100

Usage:
  1. Create the config file
  2. Navigate to your document corpus: cd /path/to/docs
  3. Run: semdex ingest
  4. Search: semdex search "your query"
`, configPath)
}
