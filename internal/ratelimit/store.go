package ratelimit

import (
	"context"
	"time"

	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// Result is the outcome of a single limiter check.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Limiter decides whether another event is allowed for key.
type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (Result, error)
}

// StoreLimiter adapts a fixed-window ulule store.
type StoreLimiter struct {
	Store limiter.Store
}

// NewMemoryLimiter returns an in-process limiter for deployments without Redis.
func NewMemoryLimiter(prefix string) StoreLimiter {
	return StoreLimiter{Store: memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          prefix,
		CleanUpInterval: limiter.DefaultCleanUpInterval,
	})}
}

// Allow implements Limiter.
func (l StoreLimiter) Allow(ctx context.Context, key string, window time.Duration, max int) (Result, error) {
	if l.Store == nil || max <= 0 || window <= 0 {
		return Result{Allowed: true, Remaining: max, Reset: time.Now().Add(window)}, nil
	}
	lctx, err := l.Store.Get(ctx, key, limiter.Rate{Period: window, Limit: int64(max)})
	if err != nil {
		return Result{}, err
	}
	return Result{
		Allowed:   !lctx.Reached,
		Remaining: int(lctx.Remaining),
		Reset:     time.Unix(lctx.Reset, 0),
	}, nil
}
