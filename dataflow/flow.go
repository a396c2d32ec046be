package dataflow

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/varflow/dag"
	"github.com/kbukum/varflow/errors"
	"github.com/kbukum/varflow/logger"
)

// subscriptionBuffer is the capacity of each consumer's inbox.
const subscriptionBuffer = 16

// Flow holds the operator graph of a dataflow and runs it. Operators are
// registered while building; no goroutine starts before Run.
type Flow struct {
	name  string
	graph *dag.Graph
	sched *dag.Scheduler
	log   *logger.Logger

	mu       sync.Mutex
	runners  []nodeRunner
	buildErr error
	failures []error
	started  bool
}

type nodeRunner struct {
	name string
	run  func(ctx context.Context) (int, error)
}

// Option configures a Flow.
type Option func(*Flow)

// WithLogger sets the flow logger.
func WithLogger(l *logger.Logger) Option {
	return func(f *Flow) { f.log = l }
}

// New creates a flow. sched runs the tasks of Process operators and may be
// nil for flows without processes.
func New(name string, sched *dag.Scheduler, opts ...Option) *Flow {
	f := &Flow{
		name:  name,
		graph: dag.NewGraph(),
		sched: sched,
		log:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.log = f.log.WithComponent("dataflow")
	return f
}

// Name returns the flow name.
func (f *Flow) Name() string { return f.name }

// Graph returns the operator graph.
func (f *Flow) Graph() *dag.Graph { return f.graph }

// Scheduler returns the task scheduler, or nil.
func (f *Flow) Scheduler() *dag.Scheduler { return f.sched }

// Run starts every operator and waits until all channels are drained.
// Independent branches keep running after a failure. The returned error
// joins the root failures: failed tasks and operator errors. Skipped work
// is not repeated in it. Run may be called once.
func (f *Flow) Run(ctx context.Context) error {
	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		return errors.Internal(fmt.Errorf("dataflow: flow %s already ran", f.name))
	}
	f.started = true
	buildErr := f.buildErr
	runners := f.runners
	f.mu.Unlock()

	if buildErr != nil {
		return buildErr
	}
	if _, err := dag.BuildLevels(f.graph); err != nil {
		return errors.Internal(err)
	}

	start := time.Now()
	f.log.Info("flow started", logger.Fields("flow", f.name, "operators", len(runners)))

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range runners {
		r := r
		g.Go(func() error {
			n, err := r.run(gctx)
			f.log.Debug("operator finished", logger.Fields(logger.FieldOperation, r.name, "emitted", n))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	errs := f.Failures()
	f.log.Info("flow finished", logger.MergeWithDuration(logger.Fields(
		"flow", f.name,
		"failures", len(errs),
	), time.Since(start)))
	return stderrors.Join(errs...)
}

// Failures returns the root failures: operator errors in the order they
// happened followed by failed tasks in declaration order.
func (f *Flow) Failures() []error {
	f.mu.Lock()
	errs := append([]error(nil), f.failures...)
	f.mu.Unlock()
	if f.sched != nil {
		errs = append(errs, f.sched.Failures()...)
	}
	return errs
}

func (f *Flow) fail(err error) {
	f.mu.Lock()
	f.failures = append(f.failures, err)
	f.mu.Unlock()
}

func (f *Flow) buildError(err error) {
	f.mu.Lock()
	if f.buildErr == nil {
		f.buildErr = err
	}
	f.mu.Unlock()
}

func (f *Flow) addNode(n dag.Node) {
	f.mu.Lock()
	started := f.started
	f.mu.Unlock()
	if started {
		f.buildError(errors.Internal(fmt.Errorf("dataflow: operator %s added after run", n.Name)))
		return
	}
	if err := f.graph.AddNode(n); err != nil {
		f.buildError(errors.Internal(err))
	}
}

// start registers the body of operator name; it reports the number of
// items it emitted.
func (f *Flow) start(name string, run func(ctx context.Context) (int, error)) {
	f.mu.Lock()
	f.runners = append(f.runners, nodeRunner{name: name, run: run})
	f.mu.Unlock()
}

// Channel is an asynchronous stream of items. Every consumer registered
// while building the flow receives every item; the stream completes when
// the producing operator closes it.
type Channel[T any] struct {
	flow *Flow
	name string
	subs []chan Item[T]
}

func newChannel[T any](f *Flow, name string, kind dag.NodeKind, op string) *Channel[T] {
	f.addNode(dag.Node{Name: name, Kind: kind, Op: op})
	return &Channel[T]{flow: f, name: name}
}

// Name returns the name of the operator producing the channel.
func (c *Channel[T]) Name() string { return c.name }

// Flow returns the flow the channel belongs to.
func (c *Channel[T]) Flow() *Flow { return c.flow }

// subscribe adds consumer to the channel and returns its inbox.
func (c *Channel[T]) subscribe(f *Flow, consumer string) <-chan Item[T] {
	if c.flow != f {
		f.buildError(errors.Internal(fmt.Errorf("dataflow: %s consumes %s from another flow", consumer, c.name)))
	}
	c.flow.graph.AddEdge(c.name, consumer)
	ch := make(chan Item[T], subscriptionBuffer)
	c.subs = append(c.subs, ch)
	return ch
}

func (c *Channel[T]) emit(it Item[T]) {
	for _, s := range c.subs {
		s <- it
	}
}

func (c *Channel[T]) close() {
	for _, s := range c.subs {
		close(s)
	}
}

// operatorError keeps AppErrors and wraps anything else with the operator
// name.
func operatorError(name string, err error) error {
	if errors.IsAppError(err) {
		return err
	}
	return errors.New(errors.ErrCodeInternal, fmt.Sprintf("operator %s failed", name)).
		WithCause(err).
		WithDetail("operator", name)
}
