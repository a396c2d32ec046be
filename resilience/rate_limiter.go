package resilience

import (
	"context"
	"sync"
	"time"
)

// RateLimiterConfig configures a token bucket.
type RateLimiterConfig struct {
	// Name identifies the limiter in hooks.
	Name string
	// Rate is the number of tokens added per second.
	Rate float64
	// Burst is the bucket capacity.
	Burst int
	// OnDelay is called when a caller has to wait for its token.
	OnDelay func(name string, delay time.Duration)
}

// RateLimiter is a token bucket. Wait reserves a token up front, so
// concurrent waiters leave in arrival order at the configured rate.
type RateLimiter struct {
	config RateLimiterConfig

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// NewRateLimiter creates a limiter with a full bucket. A non-positive rate
// means 10 per second; a non-positive burst means one second's worth of
// tokens, at least one.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = 10.0
	}
	if config.Burst <= 0 {
		config.Burst = max(1, int(config.Rate))
	}
	return &RateLimiter{
		config: config,
		tokens: float64(config.Burst),
		last:   time.Now(),
	}
}

// Wait blocks until the caller's token is due or ctx ends. A caller that
// gives up returns its reservation to the bucket.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	delay := rl.reserve()
	if delay <= 0 {
		return nil
	}
	if rl.config.OnDelay != nil {
		rl.config.OnDelay(rl.config.Name, delay)
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		rl.release()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// reserve takes one token, going into debt if the bucket is empty, and
// returns how long until that token is covered.
func (rl *RateLimiter) reserve() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	rl.tokens--
	if rl.tokens >= 0 {
		return 0
	}
	return time.Duration(-rl.tokens / rl.config.Rate * float64(time.Second))
}

func (rl *RateLimiter) release() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.tokens = min(float64(rl.config.Burst), rl.tokens+1)
}

func (rl *RateLimiter) refill() {
	now := time.Now()
	rl.tokens = min(float64(rl.config.Burst), rl.tokens+now.Sub(rl.last).Seconds()*rl.config.Rate)
	rl.last = now
}
