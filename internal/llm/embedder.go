package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Generator is the single source of embeddings. It validates the provider's
// answer and retries transient provider failures with exponential backoff.
type Generator struct {
	provider   Embedder
	retry      RetryConfig
	dimensions int
	logger     *zap.Logger
}

// GeneratorConfig configures a Generator.
type GeneratorConfig struct {
	// MaxRetries is the number of additional attempts after the first one.
	MaxRetries int
	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration
	// Dimensions defaults to EmbeddingDimensions.
	Dimensions int
}

// NewGenerator wraps provider with validation and retry.
func NewGenerator(provider Embedder, cfg GeneratorConfig, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = EmbeddingDimensions
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Generator{
		provider: provider,
		retry: RetryConfig{
			MaxAttempts: cfg.MaxRetries + 1,
			BaseDelay:   cfg.BaseDelay,
		},
		dimensions: cfg.Dimensions,
		logger:     logger,
	}
}

// Embed generates an embedding for text. A response without vector data or
// with the wrong dimensionality fails immediately; other failures are retried
// and, once exhausted, reported with the total attempt count.
func (g *Generator) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	var vector []float32
	attempts, err := retry(ctx, g.retry, g.logger, "embed", func() error {
		v, err := g.provider.Embed(ctx, text)
		if err != nil {
			if isContractError(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		if len(v) == 0 {
			return backoff.Permanent(ErrNoEmbedding)
		}
		if len(v) != g.dimensions {
			return backoff.Permanent(fmt.Errorf("%w: embedding has %d dimensions, want %d",
				ErrMalformedResponse, len(v), g.dimensions))
		}
		vector = v
		return nil
	})
	if err != nil {
		if isContractError(err) {
			return nil, fmt.Errorf("embedding response rejected: %w", err)
		}
		return nil, fmt.Errorf("embedding generation failed after %d attempts: %w", attempts, err)
	}

	return vector, nil
}

var _ Embedder = (*Generator)(nil)
