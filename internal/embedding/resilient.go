package embedding

import (
	"context"
	"fmt"
	"time"

	"responsa/internal/config"
	"responsa/pkg/circuitbreaker"
)

// ResilientModel wraps an Embedding with a per-call timeout, bounded retries
// with exponential backoff and a circuit breaker. Provider outages surface as
// errors quickly instead of hanging a request.
type ResilientModel struct {
	inner       Embedding
	timeout     time.Duration
	maxAttempts int
	backoff     time.Duration
	breaker     circuitbreaker.CircuitBreaker
	sleep       func(time.Duration)
}

var _ Embedding = (*ResilientModel)(nil)

// NewResilientModel wraps inner using the timeout and retry knobs from cfg.
func NewResilientModel(inner Embedding, cfg *config.EmbeddingConfig) *ResilientModel {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &ResilientModel{
		inner:       inner,
		timeout:     time.Duration(cfg.TimeoutSec) * time.Second,
		maxAttempts: maxAttempts,
		backoff:     time.Duration(cfg.BackoffMS) * time.Millisecond,
		breaker:     circuitbreaker.New(5, 2, 30*time.Second),
		sleep:       time.Sleep,
	}
}

// Embed calls the wrapped provider with retries. Each attempt gets its own
// timeout; the backoff doubles between attempts.
func (r *ResilientModel) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := r.do(ctx, func(ctx context.Context) (interface{}, error) {
		return r.inner.Embed(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return res.([]float32), nil
}

// EmbedBatch calls the wrapped provider with retries.
func (r *ResilientModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	res, err := r.do(ctx, func(ctx context.Context) (interface{}, error) {
		return r.inner.EmbedBatch(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	return res.([][]float32), nil
}

func (r *ResilientModel) do(ctx context.Context, call func(context.Context) (interface{}, error)) (interface{}, error) {
	var lastErr error
	wait := r.backoff

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if attempt > 1 {
			r.sleep(wait)
			wait *= 2
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := r.breaker.Execute(func() (interface{}, error) {
			attemptCtx := ctx
			if r.timeout > 0 {
				var cancel context.CancelFunc
				attemptCtx, cancel = context.WithTimeout(ctx, r.timeout)
				defer cancel()
			}
			return call(attemptCtx)
		})
		if err == nil {
			return res, nil
		}
		lastErr = err

		// A tripped breaker will not recover within the retry window.
		if err == circuitbreaker.ErrCircuitOpen {
			break
		}
	}
	return nil, fmt.Errorf("embedding provider failed after %d attempts: %w", r.maxAttempts, lastErr)
}
