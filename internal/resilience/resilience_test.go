package resilience

import (
	"context"
	"errors"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/site-audit/internal/config"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", NewTransientError(errors.New("boom"), 503), true},
		{"wrapped explicit", errors.Join(errors.New("ctx"), NewTransientError(errors.New("x"), 429)), true},
		{"net timeout", timeoutErr{}, true},
		{"conn reset", syscall.ECONNRESET, true},
		{"message pattern", errors.New("read tcp: connection reset by peer"), true},
		{"permanent", errors.New("invalid api key"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 403, 404} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}

func TestTransientErrorMessage(t *testing.T) {
	assert.Equal(t, "transient (status 503): down", NewTransientError(errors.New("down"), 503).Error())
	assert.Equal(t, "transient: down", NewTransientError(errors.New("down"), 0).Error())
}

func TestRetry_SucceedsAfterTransient(t *testing.T) {
	calls := 0
	val, err := Retry(context.Background(), fastPolicy(3), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(errors.New("flaky"), 503)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnPermanent(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(5), func(context.Context) (int, error) {
		calls++
		return 0, errors.New("bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	var retried []int
	p := fastPolicy(3)
	p.OnRetry = func(attempt int, _ error) { retried = append(retried, attempt) }
	_, err := Retry(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("down"), 502)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := Retry(ctx, fastPolicy(5), func(context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("down"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoff_CappedAtMax(t *testing.T) {
	p := RetryPolicy{InitialBackoff: time.Second, MaxBackoff: 4 * time.Second}
	assert.Equal(t, time.Second, p.Backoff(0))
	assert.Equal(t, 2*time.Second, p.Backoff(1))
	assert.Equal(t, 4*time.Second, p.Backoff(5))
	assert.Equal(t, 4*time.Second, p.Backoff(70))
}

func TestBreaker_OpensAndRecovers(t *testing.T) {
	b := NewBreaker("svc", 2, time.Minute)
	now := time.Now()
	b.now = func() time.Time { return now }
	fail := func(context.Context) (int, error) { return 0, errors.New("down") }
	ok := func(context.Context) (int, error) { return 1, nil }

	_, _ = Call(context.Background(), b, fail)
	assert.Equal(t, BreakerClosed, b.State())
	_, _ = Call(context.Background(), b, fail)
	assert.Equal(t, BreakerOpen, b.State())

	_, err := Call(context.Background(), b, ok)
	assert.ErrorIs(t, err, ErrBreakerOpen)

	now = now.Add(time.Minute)
	assert.Equal(t, BreakerHalfOpen, b.State())
	v, err := Call(context.Background(), b, ok)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker("svc", 1, time.Second)
	now := time.Now()
	b.now = func() time.Time { return now }

	_, _ = Call(context.Background(), b, func(context.Context) (int, error) { return 0, errors.New("x") })
	now = now.Add(2 * time.Second)
	_, _ = Call(context.Background(), b, func(context.Context) (int, error) { return 0, errors.New("x") })
	assert.Equal(t, BreakerOpen, b.State())
}

func TestBreakerStateString(t *testing.T) {
	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
	assert.Equal(t, "half-open", BreakerHalfOpen.String())
	assert.Equal(t, "unknown", BreakerState(9).String())
}

func TestGuard_TimeoutBoundsEachAttempt(t *testing.T) {
	g := NewGuard("slow", config.ResilienceConfig{MaxAttempts: 2, InitialBackoffMS: 1, MaxBackoffMS: 1}, 20*time.Millisecond)
	attempts := 0
	start := time.Now()
	_, err := Run(context.Background(), g, func(ctx context.Context) (int, error) {
		attempts++
		<-ctx.Done()
		return 0, ctx.Err()
	})
	require.Error(t, err)
	assert.Equal(t, 2, attempts, "a timed-out attempt is retried")
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, "slow", g.Name())
}

func TestGuard_RetriesTransient(t *testing.T) {
	g := NewGuard("api", config.ResilienceConfig{MaxAttempts: 3, InitialBackoffMS: 1, MaxBackoffMS: 2}, time.Second)
	attempts := 0
	v, err := Run(context.Background(), g, func(context.Context) (string, error) {
		attempts++
		if attempts == 1 {
			return "", NewTransientError(errors.New("429"), 429)
		}
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", v)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, BreakerClosed, g.Breaker().State())
}
