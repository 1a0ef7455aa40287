// Package llm provides the embedding and classification backends used by the
// rule memory, together with their retry policy and deterministic fakes.
package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

var (
	// ErrEmptyText is returned when asked to embed blank text.
	ErrEmptyText = errors.New("text must not be empty")

	// ErrNoEmbedding is returned when a provider answers without vector data.
	ErrNoEmbedding = errors.New("no embedding returned")

	// ErrMalformedResponse is returned when a provider answer does not match
	// the expected structure.
	ErrMalformedResponse = errors.New("malformed model response")
)

// Embedder provides text embedding capability.
type Embedder interface {
	// Embed generates an embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// JSONGenerator produces a JSON document constrained by a response schema.
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, system, prompt string, schema *genai.Schema) (string, error)
}

// ClientConfig selects the models used by Client.
type ClientConfig struct {
	APIKey         string
	EmbeddingModel string
	ChatModel      string
}

// Client wraps the Google GenAI client. Each call is a single attempt; retry
// policy lives in Generator and RuleClassifier.
type Client struct {
	client         *genai.Client
	embeddingModel string
	chatModel      string
}

// NewClient creates a new LLM client with the given configuration.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("failed to create GenAI client: API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "gemini-embedding-001"
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gemini-2.0-flash"
	}

	return &Client{
		client:         client,
		embeddingModel: cfg.EmbeddingModel,
		chatModel:      cfg.ChatModel,
	}, nil
}

// EmbeddingModel reports the model name used for embeddings.
func (c *Client) EmbeddingModel() string {
	return c.embeddingModel
}

// Embed generates an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.Models.EmbedContent(ctx, c.embeddingModel, genai.Text(text), &genai.EmbedContentConfig{
		TaskType:             "SEMANTIC_SIMILARITY",
		OutputDimensionality: genai.Ptr[int32](EmbeddingDimensions),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed content: %w", err)
	}

	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
		return nil, ErrNoEmbedding
	}

	return resp.Embeddings[0].Values, nil
}

// GenerateJSON asks the chat model for a JSON answer matching schema.
func (c *Client) GenerateJSON(ctx context.Context, system, prompt string, schema *genai.Schema) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.chatModel, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    schema,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty candidate", ErrMalformedResponse)
	}
	return text, nil
}

// Ensure Client implements both backends
var (
	_ Embedder      = (*Client)(nil)
	_ JSONGenerator = (*Client)(nil)
)
