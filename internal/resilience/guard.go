package resilience

import (
	"context"
	"time"

	"github.com/sells-group/site-audit/internal/config"
)

// Guard wraps one external service: each attempt is bounded by a timeout,
// transient failures are retried, and repeated failures open the breaker.
type Guard struct {
	name    string
	retry   RetryPolicy
	breaker *Breaker
	timeout time.Duration
}

// NewGuard builds a guard from resilience settings. A zero timeout leaves
// attempts bounded only by the caller's context.
func NewGuard(name string, cfg config.ResilienceConfig, timeout time.Duration) *Guard {
	retry := DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialBackoffMS > 0 {
		retry.InitialBackoff = time.Duration(cfg.InitialBackoffMS) * time.Millisecond
	}
	if cfg.MaxBackoffMS > 0 {
		retry.MaxBackoff = time.Duration(cfg.MaxBackoffMS) * time.Millisecond
	}
	retry.OnRetry = RetryLogger(name, "call")

	return &Guard{
		name:    name,
		retry:   retry,
		breaker: NewBreaker(name, cfg.FailureThreshold, time.Duration(cfg.ResetTimeoutSecs)*time.Second),
		timeout: timeout,
	}
}

// Name returns the guarded service name.
func (g *Guard) Name() string { return g.name }

// Breaker exposes the guard's breaker for health reporting.
func (g *Guard) Breaker() *Breaker { return g.breaker }

// Run executes fn under the guard.
func Run[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	return Call(ctx, g.breaker, func(ctx context.Context) (T, error) {
		return Retry(ctx, g.retry, func(ctx context.Context) (T, error) {
			if g.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, g.timeout)
				defer cancel()
			}
			return fn(ctx)
		})
	})
}
