package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/varflow/errors"
	"github.com/kbukum/varflow/logger"
	"github.com/kbukum/varflow/observability"
	"github.com/kbukum/varflow/resilience"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(inner Runner) Runner {
			return RunnerFunc(func(ctx context.Context, inv Invocation) (*Outcome, error) {
				order = append(order, name)
				return inner.Run(ctx, inv)
			})
		}
	}
	r := Chain(mark("a"), mark("b"), mark("c"))(RunnerFunc(func(context.Context, Invocation) (*Outcome, error) {
		order = append(order, "runner")
		return &Outcome{}, nil
	}))
	if _, err := r.Run(context.Background(), Invocation{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := strings.Join(order, ","); got != "a,b,c,runner" {
		t.Fatalf("expected a,b,c,runner got %s", got)
	}
}

func TestWithTimeoutProducesTaskTimeout(t *testing.T) {
	r := WithTimeout(20 * time.Millisecond)(shellTool("sleep 5"))
	start := time.Now()
	_, err := r.Run(context.Background(), Invocation{Task: "FreeBayes (chr1:1-100000)", Dir: t.TempDir()})
	if !errors.IsCode(err, errors.ErrCodeTaskTimeout) {
		t.Fatalf("expected TASK_TIMEOUT, got %v", err)
	}
	if time.Since(start) > 4*time.Second {
		t.Fatalf("timeout did not stop the tool")
	}
}

func TestWithTimeoutKeepsParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := WithTimeout(time.Minute)(RunnerFunc(func(ctx context.Context, inv Invocation) (*Outcome, error) {
		cancel()
		<-ctx.Done()
		return nil, errors.Canceled(ctx.Err())
	}))
	_, err := r.Run(ctx, Invocation{Task: "t"})
	if !errors.IsCode(err, errors.ErrCodeCanceled) || errors.IsCode(err, errors.ErrCodeTaskTimeout) {
		t.Fatalf("expected plain CANCELED, got %v", err)
	}
}

func TestWithTimeoutDisabled(t *testing.T) {
	inner := RunnerFunc(func(context.Context, Invocation) (*Outcome, error) { return &Outcome{}, nil })
	r := WithTimeout(0)(inner)
	if _, ok := r.(RunnerFunc); !ok {
		t.Fatalf("expected the inner runner back, got %T", r)
	}
}

func fastRetryConfig() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.InitialBackoff = time.Millisecond
	cfg.Jitter = 0
	return cfg
}

func TestWithRetryRetriesRetryableFailures(t *testing.T) {
	var calls int32
	r := WithRetry(2, fastRetryConfig(), logger.Nop())(RunnerFunc(func(_ context.Context, inv Invocation) (*Outcome, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return nil, errors.TaskExecution(inv.Task, 1, "transient")
		}
		if inv.Attempt != 3 {
			t.Errorf("expected attempt 3, got %d", inv.Attempt)
		}
		return &Outcome{}, nil
	}))

	out, err := r.Run(context.Background(), Invocation{Task: "BwaMem (S1_1)"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", out.Attempts)
	}
}

func TestWithRetrySkipsPermanentFailures(t *testing.T) {
	var calls int32
	r := WithRetry(3, fastRetryConfig(), nil)(RunnerFunc(func(context.Context, Invocation) (*Outcome, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.Configuration("bwa", "bad command")
	}))
	_, err := r.Run(context.Background(), Invocation{Task: "t"})
	if !errors.IsCode(err, errors.ErrCodeConfiguration) {
		t.Fatalf("expected CONFIGURATION_ERROR, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
}

func TestWithRetryDefaultIsSingleAttempt(t *testing.T) {
	var calls int32
	r := WithRetry(0, fastRetryConfig(), nil)(RunnerFunc(func(context.Context, Invocation) (*Outcome, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.TaskExecution("t", 1, "")
	}))
	_, _ = r.Run(context.Background(), Invocation{Task: "t"})
	if calls != 1 {
		t.Errorf("expected no retries by default, got %d calls", calls)
	}
}

func TestWithLogging(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, &buf, "varflow")

	r := WithLogging(log)(RunnerFunc(func(_ context.Context, inv Invocation) (*Outcome, error) {
		return nil, errors.TaskExecution(inv.Task, 3, "tail")
	}))
	_, _ = r.Run(context.Background(), Invocation{Task: "Faidx (ref)", Process: "Faidx", Key: "ref", Attempt: 1})

	var last map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if err := json.Unmarshal([]byte(line), &last); err != nil {
			t.Fatalf("invalid json log line %q: %v", line, err)
		}
	}
	if last["message"] != "task failed" {
		t.Fatalf("expected 'task failed', got %v", last["message"])
	}
	if last[logger.FieldTask] != "Faidx (ref)" {
		t.Errorf("expected task field, got %v", last[logger.FieldTask])
	}
	if last["code"] != string(errors.ErrCodeTaskExecution) {
		t.Errorf("expected error code field, got %v", last["code"])
	}
	if last[logger.FieldExitCode] != float64(3) {
		t.Errorf("expected exit_code 3, got %v", last[logger.FieldExitCode])
	}
}

func TestWithTracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	}()

	r := WithTracing()(RunnerFunc(func(context.Context, Invocation) (*Outcome, error) {
		return &Outcome{}, nil
	}))
	if _, err := r.Run(context.Background(), Invocation{Task: "Pass (cohort)", Process: "Pass", Key: "cohort"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Name != observability.SpanTask {
		t.Fatalf("expected one task span, got %d", len(spans))
	}
}
