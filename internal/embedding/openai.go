package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nlmatters/semdex/internal/config"
)

const defaultOpenAIEndpoint = "https://api.openai.com/v1/embeddings"

// OpenAIClient implements Client for OpenAI's embedding API
type OpenAIClient struct {
	apiKey     string
	endpoint   string
	model      string
	dimensions int
	client     *http.Client
}

// openAIRequest is the request format for the embeddings API
type openAIRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// openAIResponse is the response from the embeddings API
type openAIResponse struct {
	Object string `json:"object"`
	Data   []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
		Object    string    `json:"object"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// NewOpenAIClient creates a new OpenAI embedding client
func NewOpenAIClient(cfg *config.EmbeddingConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api_key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultOpenAIEndpoint
	}
	timeout := cfg.Timeout.Std()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = 1536
	}

	return &OpenAIClient{
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		model:      model,
		dimensions: dimensions,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// Embed generates an embedding for a single text
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts. Failures are wrapped
// as *ProviderError so callers can retry them.
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := openAIRequest{
		Input: texts,
		Model: c.model,
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: "openai", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: "openai", Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: "openai", Err: fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))}
	}

	var apiResp openAIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, &ProviderError{Provider: "openai", Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	if len(apiResp.Data) != len(texts) {
		return nil, &ProviderError{Provider: "openai", Err: fmt.Errorf("expected %d embeddings, got %d", len(texts), len(apiResp.Data))}
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range apiResp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, &ProviderError{Provider: "openai", Err: fmt.Errorf("invalid embedding index: %d", data.Index)}
		}
		embeddings[data.Index] = data.Embedding
	}

	for i, emb := range embeddings {
		if len(emb) != c.dimensions {
			return nil, &ProviderError{Provider: "openai", Err: fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(emb), c.dimensions)}
		}
	}

	return embeddings, nil
}

// Model returns the configured model identifier
func (c *OpenAIClient) Model() string {
	return c.model
}

// Dimensions returns the dimension of the embeddings
func (c *OpenAIClient) Dimensions() int {
	return c.dimensions
}
