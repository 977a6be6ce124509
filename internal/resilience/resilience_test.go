package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errProvider = errors.New("provider down")

type manualClock struct{ t time.Time }

func (c *manualClock) now() time.Time          { return c.t }
func (c *manualClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func failing(ctx context.Context) error    { return errProvider }
func succeeding(ctx context.Context) error { return nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	clock := &manualClock{t: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker("provider", CircuitBreakerConfig{FailureThreshold: 3, Cooldown: 30 * time.Second}).WithClock(clock.now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, failing); !errors.Is(err, errProvider) {
			t.Fatalf("call %d error = %v, want provider error", i, err)
		}
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %s, want OPEN", cb.State())
	}

	called := false
	err := cb.Execute(ctx, func(ctx context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Errorf("open breaker: err = %v, called = %v", err, called)
	}

	clock.advance(31 * time.Second)
	if err := cb.Execute(ctx, succeeding); err != nil {
		t.Fatalf("trial call failed: %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("state after successful trial call = %s, want CLOSED", cb.State())
	}

	stats := cb.Stats()
	if stats.TotalRejected != 1 || stats.TotalFailures != 3 || stats.TotalCalls != 5 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	clock := &manualClock{t: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker("provider", CircuitBreakerConfig{FailureThreshold: 1, Cooldown: time.Minute}).WithClock(clock.now)
	ctx := context.Background()

	cb.Execute(ctx, failing)
	clock.advance(2 * time.Minute)
	cb.Execute(ctx, failing)

	if cb.State() != CircuitOpen {
		t.Fatalf("state = %s, want OPEN", cb.State())
	}
	if err := cb.Execute(ctx, succeeding); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("error = %v, want ErrCircuitOpen right after failed trial call", err)
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("provider", CircuitBreakerConfig{FailureThreshold: 2, Cooldown: time.Minute})
	ctx := context.Background()

	cb.Execute(ctx, failing)
	cb.Execute(ctx, succeeding)
	cb.Execute(ctx, failing)

	if cb.State() != CircuitClosed {
		t.Errorf("state = %s, want CLOSED when failures are not consecutive", cb.State())
	}
}

func TestCircuitBreaker_IgnoresCallerCancellation(t *testing.T) {
	cb := NewCircuitBreaker("provider", CircuitBreakerConfig{FailureThreshold: 1, Cooldown: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("cancellation opened the breaker")
	}
}

func TestCircuitBreaker_NilAndDisabledPassThrough(t *testing.T) {
	var nilBreaker *CircuitBreaker
	v, err := ExecuteWithResult(nilBreaker, context.Background(), func(ctx context.Context) (int, error) { return 7, nil })
	if v != 7 || err != nil {
		t.Errorf("nil breaker = %d, %v", v, err)
	}

	disabled := NewCircuitBreaker("off", CircuitBreakerConfig{})
	for i := 0; i < 10; i++ {
		disabled.Execute(context.Background(), failing)
	}
	if disabled.State() != CircuitClosed {
		t.Errorf("disabled breaker opened")
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, BackoffFactor: 2}
	v, err := RetryWithResult(context.Background(), cfg, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errProvider
		}
		return "ok", nil
	})
	if err != nil || v != "ok" || calls != 3 {
		t.Errorf("v = %q, err = %v, calls = %d", v, err, calls)
	}
}

func TestRetry_StopsOnPermanent(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond}
	err := Retry(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		return Permanent(errProvider)
	})
	if !errors.Is(err, errProvider) || calls != 1 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}
}

func TestRetry_ReturnsLastErrorWhenExhausted(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}
	err := Retry(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		return errProvider
	})
	if !errors.Is(err, errProvider) || calls != 2 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}
}

func TestRetry_BackoffWaitObservesContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Hour}
	start := time.Now()
	err := Retry(ctx, cfg, failing)
	if !errors.Is(err, errProvider) {
		t.Errorf("err = %v, want last provider error", err)
	}
	if time.Since(start) > time.Second {
		t.Error("backoff ignored context cancellation")
	}
}

func TestBackoff(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, BackoffFactor: 2}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond}
	for i, w := range want {
		if got := Backoff(i, cfg); got != w {
			t.Errorf("Backoff(%d) = %s, want %s", i, got, w)
		}
	}
}

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	clock := &manualClock{t: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)}
	r := NewRateLimiter(1, 2)
	r.now = clock.now
	r.lastUpdate = clock.t

	if !r.Allow() || !r.Allow() {
		t.Fatal("burst of 2 not allowed")
	}
	if r.Allow() {
		t.Fatal("third call allowed with empty bucket")
	}
	clock.advance(time.Second)
	if !r.Allow() {
		t.Error("token not refilled after one second")
	}
}

func TestRateLimiter_WaitObservesContext(t *testing.T) {
	r := NewRateLimiter(0.001, 1)
	r.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait error = %v, want deadline exceeded", err)
	}
}

func TestRateLimiter_NilAndUnlimited(t *testing.T) {
	var nilLimiter *RateLimiter
	if err := nilLimiter.Wait(context.Background()); err != nil {
		t.Errorf("nil limiter Wait = %v", err)
	}
	unlimited := NewRateLimiter(0, 1)
	for i := 0; i < 100; i++ {
		if !unlimited.Allow() {
			t.Fatal("unlimited limiter refused a call")
		}
	}
}
