package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/clintjohnsn/pytchdeck/internal/logger"
)

// RetryConfig configures retries of failed model calls.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// CallTimeout bounds each individual attempt; zero means no extra bound.
	CallTimeout time.Duration
}

// DefaultRetryConfig returns three retries with exponential backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      8 * time.Second,
		BackoffFactor: 2.0,
	}
}

// RetryingClient wraps a Client and retries failed calls with exponential backoff.
// Context cancellation is never retried.
type RetryingClient struct {
	Client
	cfg    RetryConfig
	logger *zap.Logger
}

// WithRetry wraps client. A MaxRetries of zero disables retries but keeps the per-call timeout.
func WithRetry(client Client, cfg RetryConfig, log *zap.Logger) *RetryingClient {
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = 1
	}
	return &RetryingClient{
		Client: client,
		cfg:    cfg,
		logger: logger.WithModel(log, string(client.Provider()), ""),
	}
}

// GenerateContent retries Client.GenerateContent.
func (r *RetryingClient) GenerateContent(ctx context.Context, prompt string, tier ModelTier, opts ...CallOption) (string, error) {
	return r.do(ctx, tier, func(ctx context.Context) (string, error) {
		return r.Client.GenerateContent(ctx, prompt, tier, opts...)
	})
}

// GenerateJSON retries Client.GenerateJSON.
func (r *RetryingClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier, opts ...CallOption) (string, error) {
	return r.do(ctx, tier, func(ctx context.Context) (string, error) {
		return r.Client.GenerateJSON(ctx, prompt, tier, opts...)
	})
}

func (r *RetryingClient) do(ctx context.Context, tier ModelTier, call func(context.Context) (string, error)) (string, error) {
	var lastErr error
	delay := r.cfg.InitialDelay
	attempts := r.cfg.MaxRetries + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("llm call cancelled: %w", err)
		}

		out, err := r.attempt(ctx, call)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return "", err
		}
		if attempt == attempts {
			break
		}

		r.logger.Warn("llm call failed, retrying",
			zap.String(logger.FieldModel, r.GetModel(tier)),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err))

		select {
		case <-time.After(delay):
			delay = min(time.Duration(float64(delay)*r.cfg.BackoffFactor), r.cfg.MaxDelay)
		case <-ctx.Done():
			return "", fmt.Errorf("llm call cancelled during backoff: %w", ctx.Err())
		}
	}

	if attempts == 1 {
		return "", lastErr
	}
	return "", fmt.Errorf("llm call failed after %d attempts: %w", attempts, lastErr)
}

func (r *RetryingClient) attempt(ctx context.Context, call func(context.Context) (string, error)) (string, error) {
	if r.cfg.CallTimeout <= 0 {
		return call(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()
	return call(callCtx)
}
