package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedEmbedder is a read-through Redis cache in front of another Embedder.
// Cache faults are logged and bypassed.
type CachedEmbedder struct {
	next      Embedder
	rdb       redis.Cmdable
	namespace string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewCachedEmbedder caches next's embeddings under namespace (usually the
// embedding model name) for ttl. A zero ttl keeps entries forever.
func NewCachedEmbedder(next Embedder, rdb redis.Cmdable, namespace string, ttl time.Duration, logger *zap.Logger) *CachedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEmbedder{
		next:      next,
		rdb:       rdb,
		namespace: namespace,
		ttl:       ttl,
		logger:    logger,
	}
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "rulemem:embedding:" + c.namespace + ":" + hex.EncodeToString(sum[:])
}

// Embed returns the cached embedding for text, or computes and stores it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	cached, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if v := DecodeVector(cached); len(v) > 0 {
			return v, nil
		}
		c.logger.Warn("discarding corrupt cached embedding", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("embedding cache read failed", zap.Error(err))
	}

	v, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.rdb.Set(ctx, key, EncodeVector(v), c.ttl).Err(); err != nil {
		c.logger.Warn("embedding cache write failed", zap.Error(err))
	}
	return v, nil
}

var _ Embedder = (*CachedEmbedder)(nil)
