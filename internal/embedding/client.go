package embedding

import (
	"context"
	"fmt"

	"github.com/nlmatters/semdex/internal/config"
)

// Client is the interface for embedding provider clients. Vectors returned
// by EmbedBatch match the requested order and the declared dimension.
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Dimensions() int
}

// NewClient creates a provider client from configuration.
func NewClient(cfg *config.EmbeddingConfig) (Client, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
