package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/physai/bookrag/engine/domain"
	"github.com/physai/bookrag/pkg/fn"
	"github.com/physai/bookrag/pkg/llm"
	"github.com/physai/bookrag/pkg/resilience"
)

// Embedder maps query text to a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex returns the nearest chunks to a vector.
type VectorIndex interface {
	Search(ctx context.Context, vec []float32, topK int, filter domain.Filter) ([]domain.SearchHit, error)
}

// Generator completes a prompt.
type Generator interface {
	Complete(ctx context.Context, prompt string, opts llm.Options) (string, error)
}

// Breakers holds optional per-dependency circuit breakers.
type Breakers struct {
	Embed    *resilience.Breaker
	Search   *resilience.Breaker
	Generate *resilience.Breaker
}

// guard runs one external call under a timeout, a transient-only retry and
// an optional breaker. Every failure is reported wrapped in unavailable.
type guard struct {
	timeout     time.Duration
	retry       fn.RetryOpts
	breaker     *resilience.Breaker
	unavailable error
}

func newGuard(timeout time.Duration, retry fn.RetryOpts, b *resilience.Breaker, unavailable error) guard {
	retry.Retryable = resilience.IsTransient
	return guard{timeout: timeout, retry: retry, breaker: b, unavailable: unavailable}
}

func guardedCall[T any](ctx context.Context, g guard, call func(context.Context) (T, error)) (T, error) {
	attempt := func(ctx context.Context) fn.Result[T] {
		cctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		run := func(c context.Context) fn.Result[T] {
			v, err := call(c)
			return fn.FromPair(v, err)
		}
		if g.breaker == nil {
			return run(cctx)
		}
		return resilience.CallResult(g.breaker, cctx, run)
	}

	v, err := fn.Retry(ctx, g.retry, attempt).Unwrap()
	if err != nil {
		var zero T
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, fmt.Errorf("%w: %w", g.unavailable, ctxErr)
		}
		return zero, fmt.Errorf("%w: %w", g.unavailable, err)
	}
	return v, nil
}

type guardedEmbedder struct {
	inner Embedder
	g     guard
}

func (e guardedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := guardedCall(ctx, e.g, func(ctx context.Context) ([]float32, error) {
		return e.inner.Embed(ctx, text)
	})
	if err == nil && len(vec) == 0 {
		return nil, fmt.Errorf("%w: empty vector", domain.ErrEmbeddingUnavailable)
	}
	return vec, err
}

type guardedIndex struct {
	inner VectorIndex
	g     guard
}

func (x guardedIndex) Search(ctx context.Context, vec []float32, topK int, filter domain.Filter) ([]domain.SearchHit, error) {
	hits, err := guardedCall(ctx, x.g, func(ctx context.Context) ([]domain.SearchHit, error) {
		return x.inner.Search(ctx, vec, topK, filter)
	})
	if err != nil {
		return nil, err
	}
	if hits == nil {
		hits = []domain.SearchHit{}
	}
	return hits, nil
}

type guardedGenerator struct {
	inner Generator
	g     guard
}

func (x guardedGenerator) Complete(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	return guardedCall(ctx, x.g, func(ctx context.Context) (string, error) {
		return x.inner.Complete(ctx, prompt, opts)
	})
}
