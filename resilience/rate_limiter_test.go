package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRateLimiter_BurstIsImmediate(t *testing.T) {
	var delayed int32
	rl := NewRateLimiter(RateLimiterConfig{
		Name:    "submit",
		Rate:    1.0,
		Burst:   3,
		OnDelay: func(string, time.Duration) { atomic.AddInt32(&delayed, 1) },
	})

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("burst should not wait, took %v", elapsed)
	}
	if delayed != 0 {
		t.Errorf("expected no OnDelay callbacks, got %d", delayed)
	}
}

func TestRateLimiter_OnDelayReportsWait(t *testing.T) {
	var (
		name string
		got  time.Duration
	)
	rl := NewRateLimiter(RateLimiterConfig{
		Name:  "submit",
		Rate:  50.0,
		Burst: 1,
		OnDelay: func(n string, d time.Duration) {
			name, got = n, d
		},
	})
	ctx := context.Background()
	if err := rl.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if err := rl.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if name != "submit" || got <= 0 || got > 20*time.Millisecond {
		t.Errorf("expected a delay of at most 20ms for %q, got %v for %q", "submit", got, name)
	}
}

func TestRateLimiter_WaitPacesConcurrentCallers(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Name: "submit", Rate: 50.0, Burst: 1})

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rl.Wait(context.Background()); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	// One immediate, three spaced 20ms apart.
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("expected paced waiters, finished in %v", elapsed)
	}
}

func TestRateLimiter_WaitRespectsContext(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Name: "submit", Rate: 1.0, Burst: 1})
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestRateLimiter_CanceledWaitReturnsToken(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Name: "submit", Rate: 1.0, Burst: 1})
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_ = rl.Wait(ctx)

	// Without the refund the next caller would owe two tokens.
	if d := rl.reserve(); d > 1100*time.Millisecond {
		t.Errorf("expected at most one token of debt, got wait %v", d)
	}
}

func TestRateLimiter_CanceledContextFailsFast(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1.0, Burst: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rl.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if d := rl.reserve(); d != 0 {
		t.Errorf("canceled wait should not consume a token, got wait %v", d)
	}
}

func TestRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.5})
	if rl.config.Burst != 1 {
		t.Errorf("expected burst 1 for sub-unit rate, got %d", rl.config.Burst)
	}
	rl = NewRateLimiter(RateLimiterConfig{})
	if rl.config.Rate != 10.0 || rl.config.Burst != 10 {
		t.Errorf("expected 10/10, got %f/%d", rl.config.Rate, rl.config.Burst)
	}
}
