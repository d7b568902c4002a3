package store

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/interview-checkup/internal/resilience"
)

// Guarded decorates a Store with retries on transient failures and a circuit
// breaker. Calls rejected by an open breaker fail with ErrStoreUnavailable.
type Guarded struct {
	inner   Store
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
}

// NewGuarded wraps inner. Missing documents, cancellations and an offline
// backend do not count against the breaker.
func NewGuarded(inner Store, retry resilience.RetryConfig, breakerCfg resilience.CircuitBreakerConfig) *Guarded {
	if breakerCfg.ShouldTrip == nil {
		breakerCfg.ShouldTrip = func(err error) bool {
			return !errors.Is(err, ErrNotFound) &&
				!errors.Is(err, ErrStoreUnavailable) &&
				!errors.Is(err, context.Canceled)
		}
	}
	return &Guarded{
		inner:   inner,
		breaker: resilience.NewCircuitBreaker(breakerCfg),
		retry:   retry,
	}
}

// Breaker exposes the circuit breaker for status reporting.
func (g *Guarded) Breaker() *resilience.CircuitBreaker {
	return g.breaker
}

func guard[T any](ctx context.Context, g *Guarded, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg := g.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("store", op)
	}
	val, err := resilience.ExecuteVal(ctx, g.breaker, func(ctx context.Context) (T, error) {
		return resilience.DoVal(ctx, cfg, fn)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return val, eris.Wrapf(ErrStoreUnavailable, "store: %s: circuit open", op)
	}
	return val, err
}

func (g *Guarded) ListAll(ctx context.Context, collection string) ([]Document, error) {
	return guard(ctx, g, "list", func(ctx context.Context) ([]Document, error) {
		return g.inner.ListAll(ctx, collection)
	})
}

func (g *Guarded) Count(ctx context.Context, collection string) (int, error) {
	return guard(ctx, g, "count", func(ctx context.Context) (int, error) {
		return g.inner.Count(ctx, collection)
	})
}

// Insert is not idempotent and runs once.
func (g *Guarded) Insert(ctx context.Context, collection string, fields Fields) (string, error) {
	id, err := resilience.ExecuteVal(ctx, g.breaker, func(ctx context.Context) (string, error) {
		return g.inner.Insert(ctx, collection, fields)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return "", eris.Wrap(ErrStoreUnavailable, "store: insert: circuit open")
	}
	return id, err
}

func (g *Guarded) Put(ctx context.Context, collection string, records []Record) (int, error) {
	return guard(ctx, g, "put", func(ctx context.Context) (int, error) {
		return g.inner.Put(ctx, collection, records)
	})
}

func (g *Guarded) Update(ctx context.Context, collection, id string, fields Fields) error {
	_, err := guard(ctx, g, "update", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.inner.Update(ctx, collection, id, fields)
	})
	return err
}

func (g *Guarded) QueryWhere(ctx context.Context, collection, field string, value any) ([]Document, error) {
	return guard(ctx, g, "query", func(ctx context.Context) ([]Document, error) {
		return g.inner.QueryWhere(ctx, collection, field, value)
	})
}

// Increment is not idempotent and runs once.
func (g *Guarded) Increment(ctx context.Context, collection, id, field string, delta int) error {
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.inner.Increment(ctx, collection, id, field, delta)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return eris.Wrap(ErrStoreUnavailable, "store: increment: circuit open")
	}
	return err
}

func (g *Guarded) Migrate(ctx context.Context) error { return g.inner.Migrate(ctx) }
func (g *Guarded) Ping(ctx context.Context) error    { return g.inner.Ping(ctx) }
func (g *Guarded) Close() error                      { return g.inner.Close() }
