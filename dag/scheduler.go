package dag

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/varflow/errors"
	"github.com/kbukum/varflow/executor"
)

// TransitionHook observes every state change. It runs outside the
// scheduler lock and receives a copy of the task.
type TransitionHook func(t Task, from TaskState)

// Scheduler owns the task table of a run. Process operators declare a task
// per input item, then either run it on the executor or skip it.
type Scheduler struct {
	exec     *executor.Executor
	hooks    []TransitionHook
	failFast context.CancelFunc
	now      func() time.Time

	mu    sync.Mutex
	tasks map[string]*Task
	order []string
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTransitionHook registers a hook called on every state change.
func WithTransitionHook(h TransitionHook) Option {
	return func(s *Scheduler) { s.hooks = append(s.hooks, h) }
}

// WithFailFast makes the first task failure call cancel.
func WithFailFast(cancel context.CancelFunc) Option {
	return func(s *Scheduler) { s.failFast = cancel }
}

// NewScheduler creates a scheduler that runs tasks on exec.
func NewScheduler(exec *executor.Executor, opts ...Option) *Scheduler {
	s := &Scheduler{
		exec:  exec,
		now:   time.Now,
		tasks: make(map[string]*Task),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Declare creates a Pending task for process on the item with key. deps
// are the producer task IDs of the item. A repeated ID gets a numeric
// suffix so every declaration stays addressable.
func (s *Scheduler) Declare(process, key string, deps []string) *Task {
	s.mu.Lock()
	id := TaskID(process, key)
	if _, dup := s.tasks[id]; dup {
		base := id
		for n := 2; ; n++ {
			id = fmt.Sprintf("%s#%d", base, n)
			if _, dup := s.tasks[id]; !dup {
				break
			}
		}
	}
	t := &Task{
		ID:       id,
		Process:  process,
		Key:      key,
		Deps:     append([]string(nil), deps...),
		State:    TaskPending,
		Declared: s.now(),
	}
	s.tasks[id] = t
	s.order = append(s.order, id)
	snapshot := *t
	s.mu.Unlock()

	s.notify(snapshot, TaskPending)
	return t
}

// Run moves t to Ready, waits for an executor slot (Running) and records
// the outcome as Completed or Failed.
func (s *Scheduler) Run(ctx context.Context, t *Task, inv executor.Invocation) (*executor.Outcome, error) {
	if err := s.transition(t, TaskReady, nil); err != nil {
		return nil, err
	}

	inv.Task = t.ID
	inv.Process = t.Process
	inv.Key = t.Key
	if inv.Attempt == 0 {
		inv.Attempt = 1
	}

	out, err := s.exec.Submit(ctx, inv, func() {
		_ = s.transition(t, TaskRunning, nil)
	})
	if err != nil {
		s.finish(t, TaskFailed, err, out)
		if s.failFast != nil && !errors.IsCode(err, errors.ErrCodeCanceled) {
			s.failFast()
		}
		return out, err
	}
	s.finish(t, TaskCompleted, nil, out)
	return out, nil
}

// Skip marks a Pending task Skipped because an input item failed. The
// stored error is TASK_SKIPPED wrapping the root cause of cause.
func (s *Scheduler) Skip(t *Task, cause error) error {
	err := errors.TaskSkipped(t.ID, t.Deps, errors.RootCause(cause))
	if trErr := s.transition(t, TaskSkipped, err); trErr != nil {
		return trErr
	}
	return err
}

func (s *Scheduler) finish(t *Task, to TaskState, err error, out *executor.Outcome) {
	s.mu.Lock()
	if out != nil {
		t.Outputs = out.Outputs
		t.Attempts = out.Attempts
	}
	if t.Attempts == 0 && !t.Started.IsZero() {
		t.Attempts = 1
	}
	s.mu.Unlock()
	_ = s.transition(t, to, err)
}

func (s *Scheduler) transition(t *Task, to TaskState, err error) error {
	s.mu.Lock()
	from := t.State
	if !CanTransition(from, to) {
		s.mu.Unlock()
		return errors.Internal(fmt.Errorf("dag: task %s: invalid transition %s -> %s", t.ID, from, to))
	}
	t.State = to
	switch to {
	case TaskRunning:
		t.Started = s.now()
	case TaskCompleted, TaskFailed, TaskSkipped:
		t.Finished = s.now()
		t.Err = err
	}
	snapshot := *t
	s.mu.Unlock()

	s.notify(snapshot, from)
	return nil
}

func (s *Scheduler) notify(t Task, from TaskState) {
	for _, h := range s.hooks {
		h(t, from)
	}
}

// Tasks returns copies of all tasks in declaration order.
func (s *Scheduler) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.tasks[id])
	}
	return out
}

// Task returns a copy of the task with id.
func (s *Scheduler) Task(id string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Counts returns the number of tasks in each state.
func (s *Scheduler) Counts() map[TaskState]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[TaskState]int)
	for _, t := range s.tasks {
		counts[t.State]++
	}
	return counts
}

// Failures returns the errors of Failed tasks in declaration order.
func (s *Scheduler) Failures() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, id := range s.order {
		if t := s.tasks[id]; t.State == TaskFailed && t.Err != nil {
			errs = append(errs, t.Err)
		}
	}
	return errs
}
