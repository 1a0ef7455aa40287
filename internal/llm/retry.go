package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RetryConfig bounds the attempts made against an upstream model.
type RetryConfig struct {
	// MaxAttempts is the total number of calls, including the first one.
	MaxAttempts int
	// BaseDelay is the wait before the second attempt; it doubles after each retry.
	BaseDelay time.Duration
}

// retry runs fn until it succeeds, returns a permanent error, or MaxAttempts
// calls have been made. The delay between attempt k and k+1 is BaseDelay * 2^k.
// It reports how many attempts were made.
func retry(ctx context.Context, cfg RetryConfig, logger *zap.Logger, op string, fn func() error) (int, error) {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.BaseDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = time.Hour
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(cfg.MaxAttempts-1)), ctx)

	attempts := 0
	operation := func() error {
		attempts++
		return fn()
	}
	notify := func(err error, delay time.Duration) {
		logger.Warn("upstream call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", cfg.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(operation, policy, notify)
	return attempts, err
}

// isContractError reports whether err means the provider answered with
// something structurally wrong. Such errors are never retried.
func isContractError(err error) bool {
	return errors.Is(err, ErrNoEmbedding) || errors.Is(err, ErrMalformedResponse)
}
