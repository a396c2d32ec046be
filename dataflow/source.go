package dataflow

import (
	"context"
	"sync"

	"github.com/kbukum/varflow/dag"
)

// FromSlice emits values in order with Index set to their position. Keys
// are empty until set with KeyBy.
func FromSlice[T any](f *Flow, name string, values []T) *Channel[T] {
	out := newChannel[T](f, name, dag.KindSource, "fromSlice")
	f.start(name, func(context.Context) (int, error) {
		defer out.close()
		for i, v := range values {
			out.emit(Item[T]{Index: i, Value: v})
		}
		return len(values), nil
	})
	return out
}

// Value emits a single value with key.
func Value[T any](f *Flow, name, key string, v T) *Channel[T] {
	out := newChannel[T](f, name, dag.KindSource, "value")
	f.start(name, func(context.Context) (int, error) {
		defer out.close()
		out.emit(Item[T]{Key: key, Value: v})
		return 1, nil
	})
	return out
}

// Empty completes without emitting.
func Empty[T any](f *Flow, name string) *Channel[T] {
	out := newChannel[T](f, name, dag.KindSource, "empty")
	f.start(name, func(context.Context) (int, error) {
		out.close()
		return 0, nil
	})
	return out
}

// Sink holds the items gathered from a channel.
type Sink[T any] struct {
	mu    sync.Mutex
	items []Item[T]
}

// Gather consumes ch and keeps its items for inspection after Run.
func Gather[T any](ch *Channel[T], name string) *Sink[T] {
	f := ch.flow
	f.addNode(dag.Node{Name: name, Kind: dag.KindOperator, Op: "gather"})
	src := ch.subscribe(f, name)
	s := &Sink[T]{}
	f.start(name, func(context.Context) (int, error) {
		for it := range src {
			s.mu.Lock()
			s.items = append(s.items, it)
			s.mu.Unlock()
		}
		return 0, nil
	})
	return s
}

// Items returns every gathered item in arrival order.
func (s *Sink[T]) Items() []Item[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Item[T](nil), s.items...)
}

// Values returns the values of the successful items.
func (s *Sink[T]) Values() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []T
	for _, it := range s.items {
		if !it.Failed() {
			out = append(out, it.Value)
		}
	}
	return out
}

// Failed returns the failed items.
func (s *Sink[T]) Failed() []Item[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Item[T]
	for _, it := range s.items {
		if it.Failed() {
			out = append(out, it)
		}
	}
	return out
}
