package solana

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"snipewatch/pkg/metrics"
)

// DefaultMinInterval is the spacing between two query starts when none is configured.
const DefaultMinInterval = 5 * time.Second

// RateLimiter spaces query starts by a minimum interval. Callers queue behind
// the mutex, so queries go out in the order Wait was called. The token bucket
// has a burst of one and a token is only taken at the moment a query starts,
// so the gap between two starts is never shorter than the interval.
type RateLimiter struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	interval time.Duration
	now      func() time.Time
}

// NewRateLimiter returns a limiter allowing one query start per minInterval.
// A non-positive interval disables throttling.
func NewRateLimiter(minInterval time.Duration) *RateLimiter {
	l := &RateLimiter{
		interval: minInterval,
		now:      time.Now,
	}
	if minInterval > 0 {
		l.limiter = rate.NewLimiter(rate.Every(minInterval), 1)
	} else {
		l.limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return l
}

// Interval returns the configured minimum spacing.
func (l *RateLimiter) Interval() time.Duration {
	return l.interval
}

// Wait blocks until the caller may start a query, or ctx is done.
func (l *RateLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		delay := l.reserve(l.now())
		if delay == 0 {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// reserve takes a token at now and returns 0, or leaves the bucket untouched
// and returns how long until a token is available.
func (l *RateLimiter) reserve(now time.Time) time.Duration {
	r := l.limiter.ReserveN(now, 1)
	if !r.OK() {
		return l.interval
	}
	delay := r.DelayFrom(now)
	if delay > 0 {
		r.CancelAt(now)
	}
	return delay
}

// Execute runs fn once the limiter admits it.
func Execute[T any](ctx context.Context, l *RateLimiter, fn func(context.Context) (T, error)) (T, error) {
	if err := l.Wait(ctx); err != nil {
		var zero T
		return zero, err
	}
	return fn(ctx)
}

// RateLimitedClient routes every query of the wrapped client through one limiter.
type RateLimitedClient struct {
	next    QueryClient
	limiter *RateLimiter
}

// NewRateLimitedClient wraps next with limiter.
func NewRateLimitedClient(next QueryClient, limiter *RateLimiter) *RateLimitedClient {
	return &RateLimitedClient{next: next, limiter: limiter}
}

func (c *RateLimitedClient) GetBalance(ctx context.Context, address string) (uint64, error) {
	return limited(ctx, c.limiter, "getBalance", func(ctx context.Context) (uint64, error) {
		return c.next.GetBalance(ctx, address)
	})
}

func (c *RateLimitedClient) GetRecentSignatures(ctx context.Context, address string, limit int) ([]SignatureInfo, error) {
	return limited(ctx, c.limiter, "getSignaturesForAddress", func(ctx context.Context) ([]SignatureInfo, error) {
		return c.next.GetRecentSignatures(ctx, address, limit)
	})
}

func (c *RateLimitedClient) GetTransaction(ctx context.Context, signature string) (*TransactionDetail, error) {
	return limited(ctx, c.limiter, "getTransaction", func(ctx context.Context) (*TransactionDetail, error) {
		return c.next.GetTransaction(ctx, signature)
	})
}

func (c *RateLimitedClient) GetMintInfo(ctx context.Context, address string) (*MintInfo, error) {
	return limited(ctx, c.limiter, "getAccountInfo", func(ctx context.Context) (*MintInfo, error) {
		return c.next.GetMintInfo(ctx, address)
	})
}

func limited[T any](ctx context.Context, l *RateLimiter, method string, fn func(context.Context) (T, error)) (T, error) {
	queued := time.Now()
	out, err := Execute(ctx, l, func(ctx context.Context) (T, error) {
		metrics.RPCWait.Observe(time.Since(queued).Seconds())
		return fn(ctx)
	})
	metrics.RPCCalls.WithLabelValues(method, metrics.ResultLabel(err)).Inc()
	return out, err
}
