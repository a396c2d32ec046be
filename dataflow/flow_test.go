package dataflow

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/varflow/dag"
	"github.com/kbukum/varflow/errors"
	"github.com/kbukum/varflow/executor"
)

func newTestFlow(t *testing.T, bound int, run executor.RunnerFunc) *Flow {
	t.Helper()
	exec, err := executor.New(run, bound)
	require.NoError(t, err)
	return New("test", dag.NewScheduler(exec))
}

func ok(context.Context, executor.Invocation) (*executor.Outcome, error) {
	return &executor.Outcome{}, nil
}

func keys[T any](items []Item[T]) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Key
	}
	return out
}

func TestMapFilterKeepOrder(t *testing.T) {
	f := New("test", nil)
	src := FromSlice(f, "numbers", []int{1, 2, 3, 4, 5})
	keyed := KeyBy(src, "key", func(n int) string { return fmt.Sprintf("n%d", n) })
	doubled := Map(keyed, "double", func(_ context.Context, n int) (int, error) { return n * 2, nil })
	big := Filter(doubled, "big", func(n int) bool { return n > 4 })
	sink := Gather(big, "out")

	require.NoError(t, f.Run(context.Background()))
	assert.Equal(t, []int{6, 8, 10}, sink.Values())
	assert.Equal(t, []string{"n3", "n4", "n5"}, keys(sink.Items()))
}

func TestMapErrorBecomesFailedItem(t *testing.T) {
	f := New("test", nil)
	src := KeyBy(FromSlice(f, "numbers", []int{1, 2, 3}), "key", func(n int) string { return fmt.Sprint(n) })
	m := Map(src, "check", func(_ context.Context, n int) (int, error) {
		if n == 2 {
			return 0, stderrors.New("bad value")
		}
		return n, nil
	})
	after := Map(m, "after", func(_ context.Context, n int) (int, error) { return n + 10, nil })
	sink := Gather(after, "out")

	err := f.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "operator check failed")
	assert.Equal(t, []int{11, 13}, sink.Values())
	require.Len(t, sink.Failed(), 1)
	assert.Equal(t, "2", sink.Failed()[0].Key)
	assert.Len(t, f.Failures(), 1, "the failure is reported once, not per downstream operator")
}

func TestFlatMapChildren(t *testing.T) {
	f := New("test", nil)
	src := Value(f, "word", "w", "abc")
	letters := FlatMap(src, "letters", func(_ context.Context, s string) ([]string, error) {
		return strings.Split(s, ""), nil
	})
	sink := Gather(letters, "out")

	require.NoError(t, f.Run(context.Background()))
	items := sink.Items()
	assert.Equal(t, []string{"a", "b", "c"}, sink.Values())
	assert.Equal(t, []string{"w/1", "w/2", "w/3"}, keys(items))
	assert.Equal(t, 2, items[2].Index)
}

func TestMapIndexedAndRekey(t *testing.T) {
	f := New("test", nil)
	src := FromSlice(f, "lines", []string{"a", "b", "c"})
	indexed := MapIndexed(src, "number", func(_ context.Context, i int, s string) (string, error) {
		if s == "b" {
			return "", stderrors.New("bad line")
		}
		return fmt.Sprintf("%d:%s", i, s), nil
	})
	keyed := KeyBy(indexed, "key", func(s string) string { return s })
	rekeyed := Rekey(keyed, "group", func(key string) string { return "g-" + key })
	sink := Gather(rekeyed, "out")

	require.Error(t, f.Run(context.Background()))
	assert.Equal(t, []string{"0:a", "2:c"}, sink.Values())
	assert.Equal(t, []string{"g-0:a", "g-", "g-2:c"}, keys(sink.Items()))
	require.Len(t, sink.Failed(), 1)
	assert.Equal(t, 1, sink.Failed()[0].Index)
}

func TestCombineBroadcastsCompletedChannel(t *testing.T) {
	f := newTestFlow(t, 4, func(_ context.Context, inv executor.Invocation) (*executor.Outcome, error) {
		time.Sleep(20 * time.Millisecond)
		return &executor.Outcome{Outputs: []string{inv.Key + ".idx"}}, nil
	})
	genome := Value(f, "genome", "ref", "ref.fa")
	index := Process(genome, "Index", ProcessSpec[string, string]{
		Invocation: func(string, string) executor.Invocation { return executor.Invocation{} },
		Output:     func(_ string, _ string, out *executor.Outcome) (string, error) { return out.Outputs[0], nil },
	})
	samples := KeyBy(FromSlice(f, "samples", []string{"S1", "S2", "S3"}), "key", func(s string) string { return s })
	pairs := Combine(samples, index, "withIndex")
	sink := Gather(pairs, "out")

	require.NoError(t, f.Run(context.Background()))
	got := sink.Items()
	require.Len(t, got, 3)
	for i, it := range got {
		assert.Equal(t, Pair[string, string]{Left: it.Key, Right: "ref.idx"}, it.Value)
		assert.Equal(t, i, it.Index)
		assert.Equal(t, []string{"Index (ref)"}, it.Tasks)
	}
}

func TestCombineCrossesAllElements(t *testing.T) {
	f := New("test", nil)
	left := FromSlice(f, "left", []string{"a", "b"})
	right := FromSlice(f, "right", []int{1, 2})
	sink := Gather(Combine(left, right, "cross"), "out")

	require.NoError(t, f.Run(context.Background()))
	assert.Equal(t, []Pair[string, int]{
		{"a", 1}, {"a", 2}, {"b", 1}, {"b", 2},
	}, sink.Values())
}

func TestCombineWithFailedSide(t *testing.T) {
	f := New("test", nil)
	boom := stderrors.New("index failed")
	index := Map(Value(f, "genome", "ref", "ref.fa"), "index", func(context.Context, string) (string, error) {
		return "", boom
	})
	samples := FromSlice(f, "samples", []string{"S1", "S2"})
	sink := Gather(Combine(samples, index, "withIndex"), "out")

	require.Error(t, f.Run(context.Background()))
	assert.Empty(t, sink.Values())
	assert.Len(t, sink.Failed(), 2)
}

func TestJoinPairsByKeyOutOfOrder(t *testing.T) {
	f := New("test", nil)
	key := func(s string) string { return strings.SplitN(s, ".", 2)[0] }
	left := KeyBy(FromSlice(f, "unmapped", []string{"S1_1.u", "S1_2.u", "S2_1.u"}), "keyU", key)
	right := KeyBy(FromSlice(f, "mapped", []string{"S2_1.m", "S1_1.m", "S1_2.m"}), "keyM", key)
	sink := Gather(Join(left, right, "join"), "out")

	require.NoError(t, f.Run(context.Background()))
	got := sink.Values()
	sort.Slice(got, func(i, j int) bool { return got[i].Left < got[j].Left })
	assert.Equal(t, []Pair[string, string]{
		{"S1_1.u", "S1_1.m"}, {"S1_2.u", "S1_2.m"}, {"S2_1.u", "S2_1.m"},
	}, got)
}

func TestJoinMismatch(t *testing.T) {
	f := New("test", nil)
	left := KeyBy(FromSlice(f, "left", []string{"S1", "S2"}), "keyL", func(s string) string { return s })
	right := KeyBy(FromSlice(f, "right", []string{"S1", "S3"}), "keyR", func(s string) string { return s })
	sink := Gather(Join(left, right, "join"), "out")

	err := f.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeJoinMismatch))

	assert.Equal(t, []Pair[string, string]{{"S1", "S1"}}, sink.Values())
	failedItems := sink.Failed()
	require.Len(t, failedItems, 2, "unmatched elements are never dropped silently")
	assert.Equal(t, []string{"S2", "S3"}, keys(failedItems))
	for _, it := range failedItems {
		assert.True(t, errors.IsCode(it.Err, errors.ErrCodeJoinMismatch))
	}
	appErr, _ := errors.AsAppError(failedItems[1].Err)
	assert.Equal(t, "right", appErr.Details["side"])
}

func TestJoinDuplicateKey(t *testing.T) {
	f := New("test", nil)
	left := KeyBy(FromSlice(f, "left", []string{"S1", "S1"}), "keyL", func(s string) string { return s })
	right := KeyBy(FromSlice(f, "right", []string{"S1"}), "keyR", func(s string) string { return s })
	sink := Gather(Join(left, right, "join"), "out")

	err := f.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeJoinMismatch))
	assert.Len(t, sink.Values(), 1)
	assert.Len(t, sink.Failed(), 1)
}

func TestGroupByEmitsWhenComplete(t *testing.T) {
	f := New("test", nil)
	lanes := FromSlice(f, "lanes", []string{"S1_1", "S2_1", "S1_2", "S1_3"})
	bySample := KeyBy(lanes, "sample", func(s string) string { return strings.SplitN(s, "_", 2)[0] })
	size := map[string]int{"S1": 3, "S2": 2}
	groups := GroupBy(bySample, "group", func(key string) int { return size[key] })
	sink := Gather(groups, "out")

	require.NoError(t, f.Run(context.Background()))
	items := sink.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "S1", items[0].Key, "S1 reaches its size first")
	assert.Equal(t, []string{"S1_1", "S1_2", "S1_3"}, items[0].Value)
	assert.Equal(t, "S2", items[1].Key, "incomplete groups flush at completion")
	assert.Equal(t, []string{"S2_1"}, items[1].Value)
}

func TestCollectWaitsForUpstream(t *testing.T) {
	delays := map[string]time.Duration{
		"w1": 60 * time.Millisecond,
		"w2": 5 * time.Millisecond,
		"w3": 30 * time.Millisecond,
		"w4": 15 * time.Millisecond,
	}
	var (
		mu       sync.Mutex
		lastDone time.Time
	)
	f := newTestFlow(t, 4, func(_ context.Context, inv executor.Invocation) (*executor.Outcome, error) {
		time.Sleep(delays[inv.Key])
		mu.Lock()
		lastDone = time.Now()
		mu.Unlock()
		return &executor.Outcome{Outputs: []string{inv.Key + ".vcf"}}, nil
	})

	windows := KeyBy(FromSlice(f, "windows", []string{"w1", "w2", "w3", "w4"}), "key", func(s string) string { return s })
	calls := Process(windows, "Call", ProcessSpec[string, string]{
		Invocation: func(string, string) executor.Invocation { return executor.Invocation{} },
		Output:     func(_ string, _ string, out *executor.Outcome) (string, error) { return out.Outputs[0], nil },
	})
	var emittedAt time.Time
	stamped := Map(Collect(calls, "collect"), "stamp", func(_ context.Context, vcfs []string) ([]string, error) {
		emittedAt = time.Now()
		return vcfs, nil
	})
	sink := Gather(stamped, "out")

	require.NoError(t, f.Run(context.Background()))
	got := sink.Values()
	require.Len(t, got, 1, "collect emits exactly one aggregate")
	assert.ElementsMatch(t, []string{"w1.vcf", "w2.vcf", "w3.vcf", "w4.vcf"}, got[0])
	assert.Equal(t, "w2.vcf", got[0][0], "aggregate keeps arrival order")
	assert.False(t, emittedAt.Before(lastDone), "aggregate emitted before the last arrival")
	assert.Len(t, sink.Items()[0].Tasks, 4)
}

func TestCollectEmpty(t *testing.T) {
	f := New("test", nil)
	sink := Gather(Collect(Empty[int](f, "none"), "collect"), "out")
	require.NoError(t, f.Run(context.Background()))
	require.Len(t, sink.Values(), 1)
	assert.Empty(t, sink.Values()[0])
}

func TestSplitLinesAndCsv(t *testing.T) {
	dir := t.TempDir()
	bed := filepath.Join(dir, "windows.txt")
	require.NoError(t, os.WriteFile(bed, []byte("chr1:1-100\nchr1:101-200\n\nchr1:201-250\n"), 0o644))
	manifest := filepath.Join(dir, "reads.tsv")
	require.NoError(t, os.WriteFile(manifest, []byte("# name\tleft\tright\nS1\ta_1.fq\ta_2.fq\n\nS2\tb_1.fq\tb_2.fq\n"), 0o644))

	f := New("test", nil)
	lines := Gather(SplitLines(Value(f, "bed", "", bed), "windows", 1), "linesOut")
	pairs := Gather(SplitLines(Value(f, "bed2", "", bed), "pairs", 2), "pairsOut")
	records := Gather(SplitCsv(Value(f, "manifest", "", manifest), "records", '\t'), "recordsOut")

	require.NoError(t, f.Run(context.Background()))
	assert.Equal(t, []string{"chr1:1-100", "chr1:101-200", "chr1:201-250"}, lines.Values())
	assert.Equal(t, []string{"1", "2", "3"}, keys(lines.Items()))
	assert.Equal(t, []string{"chr1:1-100\nchr1:101-200", "chr1:201-250"}, pairs.Values())
	assert.Equal(t, [][]string{{"S1", "a_1.fq", "a_2.fq"}, {"S2", "b_1.fq", "b_2.fq"}}, records.Values())
}

func TestSplitLinesMissingFile(t *testing.T) {
	f := New("test", nil)
	sink := Gather(SplitLines(Value(f, "bed", "bed", filepath.Join(t.TempDir(), "missing")), "windows", 1), "out")
	require.Error(t, f.Run(context.Background()))
	require.Len(t, sink.Failed(), 1)
	assert.Equal(t, "bed", sink.Failed()[0].Key)
}

func TestProcessFaultIsolation(t *testing.T) {
	f := newTestFlow(t, 2, func(_ context.Context, inv executor.Invocation) (*executor.Outcome, error) {
		if inv.Process == "Align" && inv.Key == "S2" {
			return nil, errors.TaskExecution(inv.Task, 1, "bad reads")
		}
		return &executor.Outcome{Outputs: []string{inv.Key + "." + inv.Process}}, nil
	})
	spec := ProcessSpec[string, string]{
		Invocation: func(string, string) executor.Invocation { return executor.Invocation{} },
		Output:     func(_ string, _ string, out *executor.Outcome) (string, error) { return out.Outputs[0], nil },
	}
	samples := KeyBy(FromSlice(f, "samples", []string{"S1", "S2", "S3"}), "key", func(s string) string { return s })
	aligned := Process(samples, "Align", spec)
	merged := Process(aligned, "Merge", spec)
	sink := Gather(merged, "out")

	err := f.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTaskExecution))
	assert.False(t, errors.IsCode(err, errors.ErrCodeTaskSkipped), "skips are not root failures")

	assert.ElementsMatch(t, []string{"S1.Merge", "S3.Merge"}, sink.Values())
	require.Len(t, sink.Failed(), 1)
	skipped := sink.Failed()[0]
	assert.True(t, errors.IsCode(skipped.Err, errors.ErrCodeTaskSkipped))
	assert.True(t, errors.IsCode(errors.RootCause(skipped.Err), errors.ErrCodeTaskExecution))
	assert.Equal(t, []string{"Merge (S2)"}, skipped.Tasks)

	counts := f.Scheduler().Counts()
	assert.Equal(t, 4, counts[dag.TaskCompleted])
	assert.Equal(t, 1, counts[dag.TaskFailed])
	assert.Equal(t, 1, counts[dag.TaskSkipped])

	task, found := f.Scheduler().Task("Merge (S2)")
	require.True(t, found)
	assert.Equal(t, []string{"Align (S2)"}, task.Deps)
}

func TestProcessKindDefaultsToName(t *testing.T) {
	var kinds sync.Map
	f := newTestFlow(t, 1, func(_ context.Context, inv executor.Invocation) (*executor.Outcome, error) {
		kinds.Store(inv.Task, inv.Kind)
		return &executor.Outcome{}, nil
	})
	src := Value(f, "genome", "ref", "ref.fa")
	Gather(Process(src, "Faidx", ProcessSpec[string, string]{
		Invocation: func(string, string) executor.Invocation { return executor.Invocation{} },
		Output:     func(string, string, *executor.Outcome) (string, error) { return "", nil },
	}), "faidx")
	Gather(Process(src, "Dict", ProcessSpec[string, string]{
		Kind:       "CreateSequenceDictionary",
		Invocation: func(string, string) executor.Invocation { return executor.Invocation{} },
		Output:     func(string, string, *executor.Outcome) (string, error) { return "", nil },
	}), "dict")

	require.NoError(t, f.Run(context.Background()))
	kind, _ := kinds.Load("Faidx (ref)")
	assert.Equal(t, "Faidx", kind)
	kind, _ = kinds.Load("Dict (ref)")
	assert.Equal(t, "CreateSequenceDictionary", kind)
}

func TestFlowBuildErrors(t *testing.T) {
	t.Run("duplicate operator name", func(t *testing.T) {
		f := New("test", nil)
		FromSlice(f, "same", []int{1})
		FromSlice(f, "same", []int{2})
		err := f.Run(context.Background())
		assert.True(t, errors.IsCode(err, errors.ErrCodeInternal))
	})
	t.Run("process without scheduler", func(t *testing.T) {
		f := New("test", nil)
		Process(Value(f, "v", "k", 1), "P", ProcessSpec[int, int]{
			Invocation: func(string, int) executor.Invocation { return executor.Invocation{} },
			Output:     func(string, int, *executor.Outcome) (int, error) { return 0, nil },
		})
		assert.Error(t, f.Run(context.Background()))
	})
	t.Run("run twice", func(t *testing.T) {
		f := New("test", nil)
		Gather(Value(f, "v", "k", 1), "out")
		require.NoError(t, f.Run(context.Background()))
		assert.Error(t, f.Run(context.Background()))
	})
}

func TestFlowGraph(t *testing.T) {
	f := New("test", nil)
	left := FromSlice(f, "left", []int{1})
	right := FromSlice(f, "right", []int{2})
	Gather(Join(left, right, "join"), "out")

	levels, err := dag.BuildLevels(f.Graph())
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"left", "right"}, {"join"}, {"out"}}, levels)
	assert.Equal(t, []string{"left", "right"}, f.Graph().Upstream("join"))
}
