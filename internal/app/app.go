// Package app assembles the rule memory from configuration. It is shared by
// the agent launcher and the rulememory CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/easeaico/adk-rule-memory/internal/config"
	"github.com/easeaico/adk-rule-memory/internal/llm"
	"github.com/easeaico/adk-rule-memory/internal/memory"
	"github.com/easeaico/adk-rule-memory/internal/tools"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App holds the constructed components. Call Close when done.
type App struct {
	Store   memory.Store
	Service *memory.Service
	Handler *tools.Handler

	closers []func() error
}

// New builds the embedder, classifier, store and service described by cfg
// and initializes the schema.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{}

	embedder, classifier, err := newBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	if cfg.RedisURL != "" {
		rdb, err := newRedis(ctx, cfg.RedisURL, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		embedder = llm.NewCachedEmbedder(embedder, rdb, cfg.LLMBackend+":"+cfg.EmbeddingModel, cfg.EmbeddingCacheTTL, logger)
	}

	store, err := newStore(ctx, cfg, embedder)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	if err := store.InitSchema(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	a.Service = memory.NewService(store, classifier, embedder, memory.ServiceConfig{
		SearchMaxResults: cfg.DefaultMaxResults,
		SearchThreshold:  cfg.DefaultSimilarityThreshold,
	}, logger)
	a.Handler = tools.NewHandler(a.Service, tools.Defaults{
		MaxResults:          cfg.DefaultMaxResults,
		SimilarityThreshold: cfg.DefaultSimilarityThreshold,
	})

	logger.Info("rule memory initialized",
		zap.String("db_type", cfg.DBType),
		zap.String("llm_backend", cfg.LLMBackend),
		zap.Bool("embedding_cache", cfg.RedisURL != ""),
	)
	return a, nil
}

// Close releases resources in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (llm.Embedder, llm.Classifier, error) {
	if cfg.LLMBackend == config.BackendFake {
		return &llm.FakeEmbedder{}, &llm.FakeClassifier{}, nil
	}

	client, err := llm.NewClient(ctx, llm.ClientConfig{
		APIKey:         cfg.APIKey,
		EmbeddingModel: cfg.EmbeddingModel,
		ChatModel:      cfg.ClassifierModel,
	})
	if err != nil {
		return nil, nil, err
	}

	embedder := llm.NewGenerator(client, llm.GeneratorConfig{
		MaxRetries: cfg.EmbeddingMaxRetries,
		BaseDelay:  cfg.EmbeddingRetryBaseDelay,
	}, logger)
	classifier := llm.NewRuleClassifier(client, llm.RetryConfig{
		MaxAttempts: cfg.ClassifierMaxAttempts,
		BaseDelay:   cfg.ClassifierRetryBaseDelay,
	}, logger)
	return embedder, classifier, nil
}

// newRedis connects to Redis. An unreachable server is logged, not fatal:
// the cache bypasses Redis faults.
func newRedis(ctx context.Context, url string, logger *zap.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("embedding cache unavailable", zap.Error(err))
	}
	return rdb, nil
}

func newStore(ctx context.Context, cfg config.Config, embedder llm.Embedder) (memory.Store, error) {
	switch cfg.DBType {
	case config.DBTypePostgres:
		store, err := memory.NewPostgresStore(ctx, cfg.DatabaseURL, embedder)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return store, nil
	case config.DBTypeSQLite:
		store, err := memory.NewSQLiteStore(ctx, cfg.DatabaseURL, embedder)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported DB_TYPE: %s", cfg.DBType)
	}
}
