package process

import (
	"context"
	"fmt"

	"github.com/kbukum/varflow/resilience"
)

// Runner throttles command launches through a shared rate limiter, so a
// scheduler backend is not flooded with submissions.
type Runner struct {
	adapter *Adapter
	limiter *resilience.RateLimiter
}

// NewRunner creates a Runner. A nil limiter disables throttling.
func NewRunner(adapter *Adapter, limiter *resilience.RateLimiter) *Runner {
	if adapter == nil {
		adapter = NewAdapter(Config{})
	}
	return &Runner{adapter: adapter, limiter: limiter}
}

// Name returns the name of the underlying adapter.
func (r *Runner) Name() string { return r.adapter.Name() }

// Run waits for a launch token, then executes cmd. A context that ends
// while waiting yields ErrKilled, as it would for a running process.
func (r *Runner) Run(ctx context.Context, cmd Command) (*Result, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: waiting to launch %s: %w", ErrKilled, cmd.Binary, err)
		}
	}
	return r.adapter.Run(ctx, cmd)
}
