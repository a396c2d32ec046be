package executor

import (
	"context"
	"path/filepath"
	"time"
)

// Invocation describes one task execution.
type Invocation struct {
	// Task is the unique task ID, e.g. "BwaMem (S1_1)".
	Task string
	// Process is the operator that created the task.
	Process string
	// Kind selects the tool in the Registry.
	Kind string
	// Key is the lineage key of the input item.
	Key string
	// Inputs are the ordered input paths.
	Inputs []string
	// Params are tool parameters that are not files.
	Params map[string]string
	// Outputs are the declared output paths. Relative paths resolve
	// against Dir.
	Outputs []string
	// Dir is the task work directory.
	Dir string
	// Attempt is the 1-based attempt number.
	Attempt int
}

// Param returns the named parameter or the empty string.
func (inv Invocation) Param(name string) string {
	return inv.Params[name]
}

// OutputPaths returns the declared outputs resolved against Dir.
func (inv Invocation) OutputPaths() []string {
	paths := make([]string, len(inv.Outputs))
	for i, out := range inv.Outputs {
		if filepath.IsAbs(out) || inv.Dir == "" {
			paths[i] = out
		} else {
			paths[i] = filepath.Join(inv.Dir, out)
		}
	}
	return paths
}

// Outcome is the result of a successful invocation.
type Outcome struct {
	// Outputs are the produced paths in declaration order.
	Outputs  []string
	Stdout   []byte
	ExitCode int
	Duration time.Duration
	Attempts int
}

// Runner executes invocations.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (*Outcome, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, inv Invocation) (*Outcome, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, inv Invocation) (*Outcome, error) {
	return f(ctx, inv)
}

// Middleware wraps a Runner with cross-cutting behavior.
type Middleware func(Runner) Runner

// Chain composes middlewares. The first one is outermost:
// Chain(a, b, c)(r) is a(b(c(r))).
func Chain(middlewares ...Middleware) Middleware {
	return func(inner Runner) Runner {
		for i := len(middlewares) - 1; i >= 0; i-- {
			inner = middlewares[i](inner)
		}
		return inner
	}
}
