package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/kbukum/varflow/errors"
	"github.com/kbukum/varflow/process"
)

// LogFile is the file in the task directory that receives tool stderr.
const LogFile = ".command.log"

// Tool executes one kind of task.
type Tool interface {
	Run(ctx context.Context, inv Invocation) (*Outcome, error)
}

// Registry maps task kinds to tools and is itself a Runner.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds or replaces the tool for kind.
func (r *Registry) Register(kind string, tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[kind] = tool
}

// Lookup returns the tool for kind.
func (r *Registry) Lookup(kind string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[kind]
	return t, ok
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.tools))
	for k := range r.tools {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Run executes inv with the tool registered for inv.Kind and checks that
// every declared output exists afterwards.
func (r *Registry) Run(ctx context.Context, inv Invocation) (*Outcome, error) {
	tool, ok := r.Lookup(inv.Kind)
	if !ok {
		return nil, errors.New(errors.ErrCodeInternal, fmt.Sprintf("no tool registered for kind %q", inv.Kind)).
			WithDetail("task", inv.Task)
	}
	if inv.Dir != "" {
		if err := os.MkdirAll(inv.Dir, 0o755); err != nil {
			return nil, errors.Internal(fmt.Errorf("creating work dir for %s: %w", inv.Task, err))
		}
	}

	out, err := tool.Run(ctx, inv)
	if err != nil {
		return out, err
	}
	if out == nil {
		out = &Outcome{}
	}
	for _, path := range inv.OutputPaths() {
		if _, statErr := os.Stat(path); statErr != nil {
			return out, errors.New(errors.ErrCodeTaskExecution,
				fmt.Sprintf("task %s did not produce declared output %s", inv.Task, filepath.Base(path))).
				WithDetails(map[string]any{"task": inv.Task, "missing": path}).
				WithCause(statErr)
		}
	}
	if out.Outputs == nil {
		out.Outputs = inv.OutputPaths()
	}
	return out, nil
}

// Launcher starts subprocesses.
type Launcher interface {
	Name() string
	Run(ctx context.Context, cmd process.Command) (*process.Result, error)
}

// CommandTool runs an external program.
type CommandTool struct {
	// Build turns the invocation into a command line.
	Build func(inv Invocation) (process.Command, error)
	// Launcher starts the command.
	Launcher Launcher
	// TailLines is how many stderr lines a failure reports.
	// Defaults to process.DefaultTailLines.
	TailLines int
}

// Run builds and launches the command. A non-zero exit becomes
// TASK_EXECUTION_ERROR carrying the exit code and the stderr tail.
func (t *CommandTool) Run(ctx context.Context, inv Invocation) (*Outcome, error) {
	cmd, err := t.Build(inv)
	if err != nil {
		return nil, errors.Configuration(inv.Kind, fmt.Sprintf("cannot build command for %s: %v", inv.Task, err)).WithCause(err)
	}
	if cmd.Dir == "" {
		cmd.Dir = inv.Dir
	}
	if cmd.Dir != "" && cmd.Log == nil {
		f, openErr := os.Create(filepath.Join(cmd.Dir, LogFile))
		if openErr == nil {
			defer f.Close()
			cmd.Log = f
		}
	}

	result, err := t.Launcher.Run(ctx, cmd)
	if err != nil {
		if stderrorsIsKilled(err) {
			return nil, errors.Canceled(err).WithDetail("task", inv.Task)
		}
		tail := t.TailLines
		if tail <= 0 {
			tail = process.DefaultTailLines
		}
		exitCode := -1
		if result != nil {
			exitCode = result.ExitCode
		}
		return nil, errors.TaskExecution(inv.Task, exitCode, result.StderrTail(tail)).WithCause(err)
	}
	return &Outcome{
		Stdout:   result.Stdout,
		ExitCode: result.ExitCode,
		Duration: result.Duration,
	}, nil
}

// NativeTool runs a Go function as a task body.
type NativeTool struct {
	Fn func(ctx context.Context, inv Invocation) error
}

// Run calls Fn. Plain errors become TASK_EXECUTION_ERROR.
func (t *NativeTool) Run(ctx context.Context, inv Invocation) (*Outcome, error) {
	start := time.Now()
	if err := t.Fn(ctx, inv); err != nil {
		if errors.IsAppError(err) {
			return nil, err
		}
		return nil, errors.TaskExecution(inv.Task, -1, err.Error()).WithCause(err)
	}
	return &Outcome{Duration: time.Since(start)}, nil
}

// Native wraps fn as a NativeTool.
func Native(fn func(ctx context.Context, inv Invocation) error) *NativeTool {
	return &NativeTool{Fn: fn}
}
