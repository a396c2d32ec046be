package dataflow

import (
	"context"

	"github.com/kbukum/varflow/dag"
)

// Map applies fn to each value in order. An error from fn becomes a failed
// item with the input's key. Failed inputs pass through without calling fn.
func Map[I, O any](in *Channel[I], name string, fn func(context.Context, I) (O, error)) *Channel[O] {
	return mapItems(in, name, "map", func(ctx context.Context, it Item[I]) (O, error) {
		return fn(ctx, it.Value)
	})
}

// MapIndexed is Map with the item's Index passed to fn.
func MapIndexed[I, O any](in *Channel[I], name string, fn func(ctx context.Context, index int, v I) (O, error)) *Channel[O] {
	return mapItems(in, name, "mapIndexed", func(ctx context.Context, it Item[I]) (O, error) {
		return fn(ctx, it.Index, it.Value)
	})
}

func mapItems[I, O any](in *Channel[I], name, op string, fn func(context.Context, Item[I]) (O, error)) *Channel[O] {
	f := in.flow
	out := newChannel[O](f, name, dag.KindOperator, op)
	src := in.subscribe(f, name)
	f.start(name, func(ctx context.Context) (int, error) {
		defer out.close()
		n := 0
		for it := range src {
			o := Item[O]{Key: it.Key, Index: it.Index, Err: it.Err, Tasks: it.Tasks}
			if !it.Failed() {
				v, err := fn(ctx, it)
				if err != nil {
					o.Err = operatorError(name, err)
					f.fail(o.Err)
				} else {
					o.Value = v
				}
			}
			out.emit(o)
			n++
		}
		return n, nil
	})
	return out
}

// Filter keeps the values matching pred. Failed items are kept.
func Filter[T any](in *Channel[T], name string, pred func(T) bool) *Channel[T] {
	f := in.flow
	out := newChannel[T](f, name, dag.KindOperator, "filter")
	src := in.subscribe(f, name)
	f.start(name, func(context.Context) (int, error) {
		defer out.close()
		n := 0
		for it := range src {
			if it.Failed() || pred(it.Value) {
				out.emit(it)
				n++
			}
		}
		return n, nil
	})
	return out
}

// FlatMap turns each value into zero or more values. Children keep the
// parent's order; a child's Index is its position among its siblings and
// its Key extends the parent's key with that position.
func FlatMap[I, O any](in *Channel[I], name string, fn func(context.Context, I) ([]O, error)) *Channel[O] {
	f := in.flow
	out := newChannel[O](f, name, dag.KindOperator, "flatMap")
	src := in.subscribe(f, name)
	f.start(name, func(ctx context.Context) (int, error) {
		defer out.close()
		return flatten(ctx, f, name, src, out, fn), nil
	})
	return out
}

func flatten[I, O any](ctx context.Context, f *Flow, name string, src <-chan Item[I], out *Channel[O], fn func(context.Context, I) ([]O, error)) int {
	n := 0
	for it := range src {
		if it.Failed() {
			out.emit(failed[O](it.Key, it.Index, it.Err, it.Tasks))
			n++
			continue
		}
		values, err := fn(ctx, it.Value)
		if err != nil {
			err = operatorError(name, err)
			f.fail(err)
			out.emit(failed[O](it.Key, it.Index, err, it.Tasks))
			n++
			continue
		}
		for i, v := range values {
			out.emit(Item[O]{Key: childKey(it.Key, i), Index: i, Value: v, Tasks: it.Tasks})
			n++
		}
	}
	return n
}

// KeyBy sets each item's key to fn(value). Failed items keep their key.
func KeyBy[T any](in *Channel[T], name string, fn func(T) string) *Channel[T] {
	f := in.flow
	out := newChannel[T](f, name, dag.KindOperator, "keyBy")
	src := in.subscribe(f, name)
	f.start(name, func(context.Context) (int, error) {
		defer out.close()
		n := 0
		for it := range src {
			if !it.Failed() {
				it.Key = fn(it.Value)
			}
			out.emit(it)
			n++
		}
		return n, nil
	})
	return out
}

// Rekey replaces every item's key with fn(key), failed items included.
// Use it instead of KeyBy when the new key must follow failures too.
func Rekey[T any](in *Channel[T], name string, fn func(key string) string) *Channel[T] {
	f := in.flow
	out := newChannel[T](f, name, dag.KindOperator, "rekey")
	src := in.subscribe(f, name)
	f.start(name, func(context.Context) (int, error) {
		defer out.close()
		n := 0
		for it := range src {
			it.Key = fn(it.Key)
			out.emit(it)
			n++
		}
		return n, nil
	})
	return out
}
