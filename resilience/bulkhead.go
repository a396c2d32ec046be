package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// Common bulkhead errors.
var (
	ErrBulkheadFull    = errors.New("bulkhead is full")
	ErrBulkheadTimeout = errors.New("bulkhead wait timeout")
)

// WaitForever makes Execute queue until a slot frees or the context ends.
const WaitForever time.Duration = -1

// BulkheadConfig configures a bulkhead.
type BulkheadConfig struct {
	// Name identifies this bulkhead for metrics/logging.
	Name string
	// MaxConcurrent is the maximum number of concurrent calls.
	MaxConcurrent int
	// MaxWait is how long to wait for a slot. 0 means fail immediately,
	// a negative value (WaitForever) means wait until the context ends.
	MaxWait time.Duration
	// OnReject is called when a request is rejected.
	OnReject func(name string)
	// OnAcquire is called when a slot is acquired.
	OnAcquire func(name string)
	// OnRelease is called when a slot is released.
	OnRelease func(name string)
}

// Bulkhead limits how many calls run at once.
type Bulkhead struct {
	config  BulkheadConfig
	sem     chan struct{}
	waiting atomic.Int64
}

// NewBulkhead creates a new bulkhead. MaxConcurrent below one is raised to one.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 1
	}
	return &Bulkhead{
		config: config,
		sem:    make(chan struct{}, config.MaxConcurrent),
	}
}

// Execute runs fn once a slot is held.
// Returns ErrBulkheadFull, ErrBulkheadTimeout or the context error if no
// slot was obtained; fn is not called in that case.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	if err := b.acquire(ctx); err != nil {
		if b.config.OnReject != nil {
			b.config.OnReject(b.config.Name)
		}
		return err
	}
	if b.config.OnAcquire != nil {
		b.config.OnAcquire(b.config.Name)
	}
	defer func() {
		<-b.sem
		if b.config.OnRelease != nil {
			b.config.OnRelease(b.config.Name)
		}
	}()
	return fn()
}

func (b *Bulkhead) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case b.sem <- struct{}{}:
		return nil
	default:
	}
	if b.config.MaxWait == 0 {
		return ErrBulkheadFull
	}

	b.waiting.Add(1)
	defer b.waiting.Add(-1)

	var timeout <-chan time.Time
	if b.config.MaxWait > 0 {
		timer := time.NewTimer(b.config.MaxWait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case b.sem <- struct{}{}:
		return nil
	case <-timeout:
		return ErrBulkheadTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InUse returns the number of slots currently held.
func (b *Bulkhead) InUse() int {
	return len(b.sem)
}

// Waiting returns the number of callers queued for a slot.
func (b *Bulkhead) Waiting() int {
	return int(b.waiting.Load())
}

// MaxConcurrent returns the maximum concurrent calls allowed.
func (b *Bulkhead) MaxConcurrent() int {
	return b.config.MaxConcurrent
}
