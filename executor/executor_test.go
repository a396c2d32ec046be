package executor

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/kbukum/varflow/errors"
	"github.com/kbukum/varflow/observability"
)

func TestNewRejectsInvalidBound(t *testing.T) {
	for _, bound := range []int{0, -3} {
		_, err := New(RunnerFunc(nil), bound)
		if !errors.IsCode(err, errors.ErrCodeResourceExhaustion) {
			t.Errorf("bound %d: expected RESOURCE_EXHAUSTION, got %v", bound, err)
		}
	}
}

func TestSubmitHonorsBound(t *testing.T) {
	var running, peak, started int32
	runner := RunnerFunc(func(ctx context.Context, inv Invocation) (*Outcome, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return &Outcome{}, nil
	})

	metrics, err := observability.NewTaskMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	exec, err := New(runner, 2, WithTaskMetrics(metrics))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 7; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := exec.Submit(context.Background(), Invocation{Task: "t", Kind: "k"}, func() {
				atomic.AddInt32(&started, 1)
			})
			if err != nil {
				t.Errorf("Submit: %v", err)
			}
		}()
	}
	wg.Wait()

	if peak > 2 {
		t.Errorf("expected at most 2 concurrent tasks, saw %d", peak)
	}
	if started != 7 {
		t.Errorf("expected every queued task to start, got %d", started)
	}
	if exec.Bound() != 2 || exec.Running() != 0 || exec.Waiting() != 0 {
		t.Errorf("unexpected final state bound=%d running=%d waiting=%d", exec.Bound(), exec.Running(), exec.Waiting())
	}
}

func TestSubmitCanceledWhileQueued(t *testing.T) {
	release := make(chan struct{})
	runner := RunnerFunc(func(ctx context.Context, inv Invocation) (*Outcome, error) {
		<-release
		return &Outcome{}, nil
	})
	exec, err := New(runner, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	holding := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = exec.Submit(context.Background(), Invocation{Task: "first"}, func() { close(holding) })
	}()
	<-holding

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	called := false
	_, err = exec.Submit(ctx, Invocation{Task: "second"}, func() { called = true })
	if !errors.IsCode(err, errors.ErrCodeCanceled) {
		t.Fatalf("expected CANCELED, got %v", err)
	}
	if !stderrors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline in chain, got %v", err)
	}
	if called {
		t.Error("onStart must not run for an abandoned task")
	}

	close(release)
	<-done
}

func TestSubmitPropagatesFailure(t *testing.T) {
	boom := errors.TaskExecution("t", 2, "bad input")
	exec, err := New(RunnerFunc(func(context.Context, Invocation) (*Outcome, error) {
		return nil, boom
	}), 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = exec.Submit(context.Background(), Invocation{Task: "t"}, nil)
	if err != boom {
		t.Fatalf("expected runner error unchanged, got %v", err)
	}
}

func TestSubmitFillsDuration(t *testing.T) {
	exec, err := New(RunnerFunc(func(context.Context, Invocation) (*Outcome, error) {
		time.Sleep(5 * time.Millisecond)
		return nil, nil
	}), 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := exec.Submit(context.Background(), Invocation{Task: "t"}, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Duration < 5*time.Millisecond {
		t.Errorf("expected measured duration, got %v", out.Duration)
	}
}
