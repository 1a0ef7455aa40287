package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func fixedVector(value float32) []float32 {
	v := make([]float32, EmbeddingDimensions)
	for i := range v {
		v[i] = value
	}
	return v
}

func TestGenerator_Embed(t *testing.T) {
	ctx := context.Background()
	transient := errors.New("503 service unavailable")

	tests := []struct {
		name       string
		provider   *FakeEmbedder
		maxRetries int
		text       string
		wantErr    error
		wantErrMsg string
		wantCalls  int
		wantDims   int
	}{
		{
			name:      "first attempt succeeds",
			provider:  &FakeEmbedder{Vector: fixedVector(0.1)},
			text:      "Use TypeScript for new files",
			wantCalls: 1,
			wantDims:  EmbeddingDimensions,
		},
		{
			name:       "recovers after transient failures",
			provider:   &FakeEmbedder{Vector: fixedVector(0.1), Err: transient, FailFirst: 2},
			maxRetries: 2,
			text:       "Use TypeScript for new files",
			wantCalls:  3,
			wantDims:   EmbeddingDimensions,
		},
		{
			name:       "exhausts retries",
			provider:   &FakeEmbedder{Err: transient},
			maxRetries: 2,
			text:       "Use TypeScript for new files",
			wantErr:    transient,
			wantErrMsg: "3 attempts",
			wantCalls:  3,
		},
		{
			name:       "missing vector data is final",
			provider:   &FakeEmbedder{Err: ErrNoEmbedding},
			maxRetries: 5,
			text:       "Use TypeScript for new files",
			wantErr:    ErrNoEmbedding,
			wantCalls:  1,
		},
		{
			name:       "empty vector is final",
			provider:   &FakeEmbedder{Vector: []float32{}},
			maxRetries: 5,
			text:       "Use TypeScript for new files",
			wantErr:    ErrNoEmbedding,
			wantCalls:  1,
		},
		{
			name:       "wrong dimensionality is final",
			provider:   &FakeEmbedder{Vector: []float32{0.1, 0.2, 0.3}},
			maxRetries: 5,
			text:       "Use TypeScript for new files",
			wantErr:    ErrMalformedResponse,
			wantErrMsg: "3 dimensions",
			wantCalls:  1,
		},
		{
			name:      "blank text never reaches the provider",
			provider:  &FakeEmbedder{Vector: fixedVector(0.1)},
			text:      "   ",
			wantErr:   ErrEmptyText,
			wantCalls: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := NewGenerator(tt.provider, GeneratorConfig{
				MaxRetries: tt.maxRetries,
				BaseDelay:  time.Millisecond,
			}, zaptest.NewLogger(t))

			vec, err := gen.Embed(ctx, tt.text)

			assert.Equal(t, tt.wantCalls, tt.provider.Calls())
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				if tt.wantErrMsg != "" {
					assert.Contains(t, err.Error(), tt.wantErrMsg)
				}
				assert.Nil(t, vec)
				return
			}
			require.NoError(t, err)
			assert.Len(t, vec, tt.wantDims)
		})
	}
}

func TestGenerator_BackoffDoubles(t *testing.T) {
	provider := &FakeEmbedder{Err: errors.New("timeout")}
	gen := NewGenerator(provider, GeneratorConfig{MaxRetries: 2, BaseDelay: 20 * time.Millisecond}, nil)

	start := time.Now()
	_, err := gen.Embed(context.Background(), "text")
	elapsed := time.Since(start)

	require.Error(t, err)
	// 20ms before the second attempt, 40ms before the third.
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
}

func TestGenerator_StopsOnCancelledContext(t *testing.T) {
	provider := &FakeEmbedder{Err: errors.New("timeout")}
	gen := NewGenerator(provider, GeneratorConfig{MaxRetries: 10, BaseDelay: time.Hour}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := gen.Embed(ctx, "text")
	require.Error(t, err)
	assert.Equal(t, 1, provider.Calls())
}
