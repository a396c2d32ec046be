package dataflow

import (
	"sort"
	"strconv"
)

// Item is one element of a channel together with its lineage.
type Item[T any] struct {
	// Key identifies the lineage, e.g. a readgroup ID or a window.
	Key string
	// Index is the position assigned by the source or fan-out.
	Index int
	Value T
	// Err is set when the item carries a failure instead of a value.
	Err error
	// Tasks are the IDs of the tasks that produced the item.
	Tasks []string
}

// Failed reports whether the item carries a failure.
func (it Item[T]) Failed() bool { return it.Err != nil }

// Pair is the element type of Combine and Join.
type Pair[L, R any] struct {
	Left  L
	Right R
}

// childKey derives the key of the i-th element produced from parent.
func childKey(parent string, i int) string {
	if parent == "" {
		return strconv.Itoa(i + 1)
	}
	return parent + "/" + strconv.Itoa(i+1)
}

// mergeTasks returns the sorted union of task ID lists.
func mergeTasks(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, l := range lists {
		for _, id := range l {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// failed builds a failed item of type T carrying lineage from the input.
func failed[T any](key string, index int, err error, tasks []string) Item[T] {
	return Item[T]{Key: key, Index: index, Err: err, Tasks: tasks}
}
