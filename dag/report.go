package dag

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/varflow/errors"
)

// Report summarises a run.
type Report struct {
	RunID    string         `yaml:"run_id"`
	Pipeline string         `yaml:"pipeline"`
	Started  time.Time      `yaml:"started"`
	Finished time.Time      `yaml:"finished"`
	Duration string         `yaml:"duration"`
	Success  bool           `yaml:"success"`
	Counts   map[string]int `yaml:"counts"`
	Tasks    []TaskRecord   `yaml:"tasks"`
	// Failures are root failures: failed tasks and dataflow errors.
	// Skips are excluded.
	Failures []FailureRecord `yaml:"failures,omitempty"`
}

// TaskRecord is the report entry of one task.
type TaskRecord struct {
	ID         string    `yaml:"id"`
	Process    string    `yaml:"process"`
	Key        string    `yaml:"key,omitempty"`
	State      TaskState `yaml:"state"`
	Deps       []string  `yaml:"deps,omitempty"`
	DurationMS int64     `yaml:"duration_ms"`
	Attempts   int       `yaml:"attempts,omitempty"`
	Outputs    []string  `yaml:"outputs,omitempty"`
	Error      string    `yaml:"error,omitempty"`
	Code       string    `yaml:"code,omitempty"`
}

// FailureRecord describes one root failure.
type FailureRecord struct {
	Code    string         `yaml:"code"`
	Message string         `yaml:"message"`
	Details map[string]any `yaml:"details,omitempty"`
}

// NewReport builds a report from the scheduler's task table and the
// run's root failures.
func NewReport(runID, pipeline string, started time.Time, tasks []Task, failures []error) *Report {
	finished := time.Now()
	r := &Report{
		RunID:    runID,
		Pipeline: pipeline,
		Started:  started,
		Finished: finished,
		Duration: finished.Sub(started).Round(time.Millisecond).String(),
		Success:  len(failures) == 0,
		Counts:   make(map[string]int),
	}
	for s := TaskPending; s < maxTaskState; s++ {
		r.Counts[s.String()] = 0
	}
	for _, t := range tasks {
		r.Counts[t.State.String()]++
		rec := TaskRecord{
			ID:         t.ID,
			Process:    t.Process,
			Key:        t.Key,
			State:      t.State,
			Deps:       t.Deps,
			DurationMS: t.Duration().Milliseconds(),
			Attempts:   t.Attempts,
			Outputs:    t.Outputs,
		}
		if t.Err != nil {
			rec.Error = t.Err.Error()
			rec.Code = string(errors.CodeOf(t.Err))
		}
		r.Tasks = append(r.Tasks, rec)
	}
	for _, err := range failures {
		fr := FailureRecord{Code: string(errors.CodeOf(err)), Message: err.Error()}
		if appErr, ok := errors.AsAppError(err); ok {
			fr.Message = appErr.Message
			fr.Details = appErr.Details
		}
		r.Failures = append(r.Failures, fr)
	}
	return r
}

// WriteYAML writes the report to path.
func (r *Report) WriteYAML(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("dag: marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("dag: write report %s: %w", path, err)
	}
	return nil
}

// Summary renders the non-zero state counts, e.g.
// "completed=12 failed=1 skipped=3".
func (r *Report) Summary() string {
	states := make([]string, 0, len(r.Counts))
	for s, n := range r.Counts {
		if n > 0 {
			states = append(states, fmt.Sprintf("%s=%d", s, n))
		}
	}
	sort.Strings(states)
	return strings.Join(states, " ")
}

// ReadReport loads a report written by WriteYAML.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dag: read report %s: %w", path, err)
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("dag: parse report %s: %w", path, err)
	}
	return &r, nil
}
