package dag

import (
	"fmt"
	"time"
)

// TaskState is the lifecycle state of a task.
type TaskState int

const (
	// TaskPending: declared, inputs not yet satisfied.
	TaskPending TaskState = iota
	// TaskReady: inputs satisfied, waiting for an executor slot.
	TaskReady
	// TaskRunning: holds an executor slot.
	TaskRunning
	// TaskCompleted: outputs emitted.
	TaskCompleted
	// TaskFailed: the tool failed or timed out.
	TaskFailed
	// TaskSkipped: never ran because an input failed.
	TaskSkipped

	maxTaskState
)

var taskStateNames = [...]string{
	TaskPending:   "pending",
	TaskReady:     "ready",
	TaskRunning:   "running",
	TaskCompleted: "completed",
	TaskFailed:    "failed",
	TaskSkipped:   "skipped",
}

// String returns the lower-case name of the state.
func (s TaskState) String() string {
	if s < 0 || s >= maxTaskState {
		return fmt.Sprintf("TaskState(%d)", int(s))
	}
	return taskStateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s TaskState) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskSkipped
}

// MarshalText renders the state name in reports.
func (s TaskState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *TaskState) UnmarshalText(text []byte) error {
	for i, name := range taskStateNames {
		if name == string(text) {
			*s = TaskState(i)
			return nil
		}
	}
	return fmt.Errorf("dag: unknown task state %q", text)
}

var transitions = map[TaskState][]TaskState{
	TaskPending: {TaskReady, TaskSkipped},
	TaskReady:   {TaskRunning, TaskFailed},
	TaskRunning: {TaskCompleted, TaskFailed},
}

// CanTransition reports whether from → to is a legal move.
func CanTransition(from, to TaskState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Task is one execution of a process on one input item.
type Task struct {
	ID      string
	Process string
	Key     string
	// Deps are the IDs of the tasks that produced this task's inputs.
	Deps []string

	State   TaskState
	Err     error
	Outputs []string

	Declared time.Time
	Started  time.Time
	Finished time.Time
	Attempts int
}

// Duration is the running time of a finished task.
func (t *Task) Duration() time.Duration {
	if t.Started.IsZero() || t.Finished.IsZero() {
		return 0
	}
	return t.Finished.Sub(t.Started)
}

// TaskID builds the display ID of a task.
func TaskID(process, key string) string {
	if key == "" {
		return process
	}
	return fmt.Sprintf("%s (%s)", process, key)
}
