package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cd8875/clinical-ai-assistant/config"
	"github.com/cd8875/clinical-ai-assistant/internal/domain"
)

// RetryPolicy bounds calls to embedding and LLM providers.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	// Timeout bounds each attempt. Zero leaves attempts unbounded.
	Timeout time.Duration
}

func NewRetryPolicy(retry config.RetryConfig, timeout config.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: retry.MaxAttempts,
		BaseBackoff: retry.BaseBackoff.Duration(),
		Timeout:     timeout.Duration(),
	}
}

// retryProvider runs fn until it succeeds, fails with an error that is not
// domain.ErrProviderFailure, or the attempts run out. Backoff doubles after
// each failed attempt.
func retryProvider[T any](ctx context.Context, policy RetryPolicy, logger *zap.Logger, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := callWithTimeout(ctx, policy.Timeout, fn)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%s: %w", op, ctx.Err())
		}
		if !errors.Is(err, domain.ErrProviderFailure) {
			return zero, fmt.Errorf("%s: %w", op, err)
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		backoff := policy.BaseBackoff << (attempt - 1)
		logger.Warn("provider call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-timer.C:
		}
	}
	return zero, fmt.Errorf("%s failed after %d attempts: %w", op, attempts, lastErr)
}

func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := fn(attemptCtx)
	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, domain.ErrProviderFailure) {
		err = fmt.Errorf("%w: timed out after %s: %v", domain.ErrProviderFailure, timeout, err)
	}
	return result, err
}
