package executor

import (
	"context"
	"time"

	"github.com/kbukum/varflow/errors"
	"github.com/kbukum/varflow/logger"
	"github.com/kbukum/varflow/observability"
	"github.com/kbukum/varflow/resilience"
)

// Executor runs invocations with at most Bound of them in flight.
type Executor struct {
	runner   Runner
	bulkhead *resilience.Bulkhead
	metrics  *observability.TaskMetrics
	log      *logger.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithTaskMetrics records queue, start and end of every invocation.
func WithTaskMetrics(m *observability.TaskMetrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithLogger sets the executor logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Executor) { e.log = l }
}

// New creates an executor. A bound below one is RESOURCE_EXHAUSTION.
func New(runner Runner, bound int, opts ...Option) (*Executor, error) {
	if bound < 1 {
		return nil, errors.ResourceExhaustion("executor", bound)
	}
	e := &Executor{
		runner: runner,
		bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          "executor",
			MaxConcurrent: bound,
			MaxWait:       resilience.WaitForever,
		}),
		log: logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.WithComponent("executor")
	return e, nil
}

// Submit waits for a free slot, calls onStart once the slot is held and
// runs inv. Waiting ends early only when ctx is canceled, which yields a
// CANCELED error without running inv.
func (e *Executor) Submit(ctx context.Context, inv Invocation, onStart func()) (*Outcome, error) {
	if inv.Process == "" {
		inv.Process = inv.Kind
	}
	if e.metrics != nil {
		e.metrics.RecordQueued(ctx, inv.Process)
	}

	var out *Outcome
	var runErr error
	var start time.Time
	err := e.bulkhead.Execute(ctx, func() error {
		start = time.Now()
		if e.metrics != nil {
			e.metrics.RecordStart(ctx, inv.Process)
		}
		if onStart != nil {
			onStart()
		}
		out, runErr = e.runner.Run(ctx, inv)
		return runErr
	})

	if start.IsZero() {
		e.log.Debug("task abandoned before start", logger.Fields(logger.FieldTask, inv.Task))
		if e.metrics != nil {
			e.metrics.RecordAbandoned(ctx, inv.Process, "canceled")
		}
		return nil, errors.Canceled(err).WithDetail("task", inv.Task)
	}

	duration := time.Since(start)
	if e.metrics != nil {
		state := "completed"
		if runErr != nil {
			state = "failed"
		}
		e.metrics.RecordEnd(ctx, inv.Process, state, duration)
	}
	if runErr != nil {
		return out, runErr
	}
	if out == nil {
		out = &Outcome{}
	}
	if out.Duration == 0 {
		out.Duration = duration
	}
	return out, nil
}

// Bound returns the concurrency bound.
func (e *Executor) Bound() int { return e.bulkhead.MaxConcurrent() }

// Running returns the number of invocations holding a slot.
func (e *Executor) Running() int { return e.bulkhead.InUse() }

// Waiting returns the number of invocations queued for a slot.
func (e *Executor) Waiting() int { return e.bulkhead.Waiting() }
