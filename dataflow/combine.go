package dataflow

import (
	"context"
	"sort"

	"github.com/kbukum/varflow/dag"
	"github.com/kbukum/varflow/errors"
)

// Combine pairs every left item with every item of other. other is
// materialized first: left items that arrive before it completes are
// buffered, later ones are emitted right away. Pairs take the left key;
// a failed item on either side yields a failed pair.
func Combine[L, R any](left *Channel[L], other *Channel[R], name string) *Channel[Pair[L, R]] {
	f := left.flow
	out := newChannel[Pair[L, R]](f, name, dag.KindOperator, "combine")
	lc := left.subscribe(f, name)
	rc := other.subscribe(f, name)
	f.start(name, func(context.Context) (int, error) {
		defer out.close()
		var (
			pending []Item[L]
			rights  []Item[R]
			n       int
		)
		emit := func(l Item[L]) {
			for j, r := range rights {
				out.emit(pairItem(l.Key, l.Index*len(rights)+j, l, r))
				n++
			}
		}
		for lc != nil || rc != nil {
			select {
			case l, ok := <-lc:
				if !ok {
					lc = nil
					continue
				}
				if rc == nil {
					emit(l)
				} else {
					pending = append(pending, l)
				}
			case r, ok := <-rc:
				if !ok {
					rc = nil
					for _, l := range pending {
						emit(l)
					}
					pending = nil
					continue
				}
				rights = append(rights, r)
			}
		}
		return n, nil
	})
	return out
}

// Join pairs left and right items 1:1 by key. An item waits until its
// partner arrives. Once both sides complete, every unmatched key yields a
// failed item with JOIN_MISMATCH; a key repeated on one side does too.
func Join[L, R any](left *Channel[L], right *Channel[R], name string) *Channel[Pair[L, R]] {
	f := left.flow
	out := newChannel[Pair[L, R]](f, name, dag.KindOperator, "join")
	lc := left.subscribe(f, name)
	rc := right.subscribe(f, name)
	f.start(name, func(context.Context) (int, error) {
		defer out.close()
		var (
			lefts  = make(map[string]Item[L])
			rights = make(map[string]Item[R])
			seenL  = make(map[string]bool)
			seenR  = make(map[string]bool)
			n      int
		)
		duplicate := func(key, side string, index int, tasks []string) {
			err := errors.DuplicateKey(name, key, side)
			f.fail(err)
			out.emit(failed[Pair[L, R]](key, index, err, tasks))
			n++
		}
		for lc != nil || rc != nil {
			select {
			case l, ok := <-lc:
				if !ok {
					lc = nil
					continue
				}
				if seenL[l.Key] {
					duplicate(l.Key, "left", l.Index, l.Tasks)
					continue
				}
				seenL[l.Key] = true
				if r, ok := rights[l.Key]; ok {
					delete(rights, l.Key)
					out.emit(pairItem(l.Key, l.Index, l, r))
					n++
					continue
				}
				lefts[l.Key] = l
			case r, ok := <-rc:
				if !ok {
					rc = nil
					continue
				}
				if seenR[r.Key] {
					duplicate(r.Key, "right", r.Index, r.Tasks)
					continue
				}
				seenR[r.Key] = true
				if l, ok := lefts[r.Key]; ok {
					delete(lefts, r.Key)
					out.emit(pairItem(r.Key, l.Index, l, r))
					n++
					continue
				}
				rights[r.Key] = r
			}
		}

		for _, key := range sortedKeys(lefts) {
			l := lefts[key]
			out.emit(unmatched[Pair[L, R]](f, name, "left", l.Key, l.Index, l.Err, l.Tasks))
			n++
		}
		for _, key := range sortedKeys(rights) {
			r := rights[key]
			out.emit(unmatched[Pair[L, R]](f, name, "right", r.Key, r.Index, r.Err, r.Tasks))
			n++
		}
		return n, nil
	})
	return out
}

// unmatched reports a key left without a partner. An item that already
// failed upstream keeps its own failure.
func unmatched[T any](f *Flow, name, side, key string, index int, cause error, tasks []string) Item[T] {
	if cause != nil {
		return failed[T](key, index, cause, tasks)
	}
	err := errors.JoinMismatch(name, key, side)
	f.fail(err)
	return failed[T](key, index, err, tasks)
}

func pairItem[L, R any](key string, index int, l Item[L], r Item[R]) Item[Pair[L, R]] {
	it := Item[Pair[L, R]]{Key: key, Index: index, Tasks: mergeTasks(l.Tasks, r.Tasks)}
	switch {
	case l.Failed():
		it.Err = l.Err
	case r.Failed():
		it.Err = r.Err
	default:
		it.Value = Pair[L, R]{Left: l.Value, Right: r.Value}
	}
	return it
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GroupBy groups items by key. A group is emitted as soon as it holds
// size(key) items, or when the input completes. Members are ordered by
// Index. A group with a failed member is emitted as failed.
func GroupBy[T any](in *Channel[T], name string, size func(key string) int) *Channel[[]T] {
	f := in.flow
	out := newChannel[[]T](f, name, dag.KindOperator, "groupBy")
	src := in.subscribe(f, name)
	f.start(name, func(context.Context) (int, error) {
		defer out.close()
		groups := make(map[string][]Item[T])
		var order []string
		n := 0
		flush := func(key string) {
			out.emit(aggregate(key, n, groups[key]))
			delete(groups, key)
			n++
		}
		for it := range src {
			if _, ok := groups[it.Key]; !ok {
				order = append(order, it.Key)
			}
			groups[it.Key] = append(groups[it.Key], it)
			if size != nil {
				if want := size(it.Key); want > 0 && len(groups[it.Key]) >= want {
					flush(it.Key)
				}
			}
		}
		for _, key := range order {
			if _, ok := groups[key]; ok {
				flush(key)
			}
		}
		return n, nil
	})
	return out
}

// Collect is a barrier: it buffers every item and, only after the input
// completes, emits exactly one item holding all values in arrival order.
// If any input failed the aggregate is failed with the first failure.
func Collect[T any](in *Channel[T], name string) *Channel[[]T] {
	f := in.flow
	out := newChannel[[]T](f, name, dag.KindOperator, "collect")
	src := in.subscribe(f, name)
	f.start(name, func(context.Context) (int, error) {
		defer out.close()
		var items []Item[T]
		for it := range src {
			items = append(items, it)
		}
		var agg Item[[]T]
		for _, it := range items {
			agg.Tasks = mergeTasks(agg.Tasks, it.Tasks)
			if it.Failed() && agg.Err == nil {
				agg.Err = it.Err
			}
		}
		if agg.Err == nil {
			agg.Value = make([]T, 0, len(items))
			for _, it := range items {
				agg.Value = append(agg.Value, it.Value)
			}
		}
		out.emit(agg)
		return 1, nil
	})
	return out
}

func aggregate[T any](key string, index int, members []Item[T]) Item[[]T] {
	sort.SliceStable(members, func(i, j int) bool { return members[i].Index < members[j].Index })
	agg := Item[[]T]{Key: key, Index: index}
	for _, m := range members {
		agg.Tasks = mergeTasks(agg.Tasks, m.Tasks)
		if m.Failed() && agg.Err == nil {
			agg.Err = m.Err
		}
	}
	if agg.Err == nil {
		agg.Value = make([]T, len(members))
		for i, m := range members {
			agg.Value[i] = m.Value
		}
	}
	return agg
}
