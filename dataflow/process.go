package dataflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/varflow/dag"
	"github.com/kbukum/varflow/errors"
	"github.com/kbukum/varflow/executor"
)

// ProcessSpec describes the tasks of a Process operator.
type ProcessSpec[I, O any] struct {
	// Kind selects the tool in the executor's registry. Defaults to the
	// operator name.
	Kind string
	// Invocation builds the task invocation for an input value.
	Invocation func(key string, in I) executor.Invocation
	// Output builds the output value from a completed task. An error
	// fails the item but not the task.
	Output func(key string, in I, out *executor.Outcome) (O, error)
}

// Process turns each input item into one scheduler task named
// "<name> (<key>)". Tasks run concurrently on the executor; outputs are
// emitted as tasks complete, so order across keys is not kept. A failed
// input skips its task and yields a failed item with TASK_SKIPPED.
func Process[I, O any](in *Channel[I], name string, spec ProcessSpec[I, O]) *Channel[O] {
	f := in.flow
	out := newChannel[O](f, name, dag.KindProcess, "process")
	src := in.subscribe(f, name)
	if f.sched == nil {
		f.buildError(errors.Internal(fmt.Errorf("dataflow: process %s needs a scheduler", name)))
	}
	if spec.Invocation == nil || spec.Output == nil {
		f.buildError(errors.Internal(fmt.Errorf("dataflow: process %s needs Invocation and Output", name)))
	}
	kind := spec.Kind
	if kind == "" {
		kind = name
	}

	f.start(name, func(ctx context.Context) (int, error) {
		defer out.close()
		var (
			wg sync.WaitGroup
			mu sync.Mutex
			n  int
		)
		send := func(it Item[O]) {
			out.emit(it)
			mu.Lock()
			n++
			mu.Unlock()
		}
		for it := range src {
			task := f.sched.Declare(name, it.Key, it.Tasks)
			if it.Failed() {
				err := f.sched.Skip(task, it.Err)
				send(failed[O](it.Key, it.Index, err, []string{task.ID}))
				continue
			}
			wg.Add(1)
			go func(it Item[I], task *dag.Task) {
				defer wg.Done()
				inv := spec.Invocation(it.Key, it.Value)
				if inv.Kind == "" {
					inv.Kind = kind
				}
				outcome, err := f.sched.Run(ctx, task, inv)
				if err != nil {
					send(failed[O](it.Key, it.Index, err, []string{task.ID}))
					return
				}
				value, err := spec.Output(it.Key, it.Value, outcome)
				if err != nil {
					err = operatorError(name, err)
					f.fail(err)
					send(failed[O](it.Key, it.Index, err, []string{task.ID}))
					return
				}
				send(Item[O]{Key: it.Key, Index: it.Index, Value: value, Tasks: []string{task.ID}})
			}(it, task)
		}
		wg.Wait()
		return n, nil
	})
	return out
}
