package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestAppError_New(t *testing.T) {
	err := New(ErrCodeJoinMismatch, "no partner")
	if err.Code != ErrCodeJoinMismatch {
		t.Errorf("expected code %s, got %s", ErrCodeJoinMismatch, err.Code)
	}
	if err.Message != "no partner" {
		t.Errorf("expected message 'no partner', got %q", err.Message)
	}
	if err.Retryable {
		t.Error("JOIN_MISMATCH should not be retryable")
	}
}

func TestAppError_New_Retryable(t *testing.T) {
	err := New(ErrCodeTaskExecution, "exit 1")
	if !err.Retryable {
		t.Error("TASK_EXECUTION_ERROR should be retryable")
	}
}

func TestAppError_ErrorString(t *testing.T) {
	err := Configuration("genome", "genome is required")
	if got := err.Error(); got != "CONFIGURATION_ERROR: genome is required" {
		t.Errorf("unexpected message %q", got)
	}
	err.WithCause(fmt.Errorf("stat genome.fa: no such file"))
	if !strings.Contains(err.Error(), "cause: stat genome.fa") {
		t.Errorf("expected cause in message, got %q", err.Error())
	}
}

func TestTaskExecution_Details(t *testing.T) {
	err := TaskExecution("BwaMem (s1_1)", 137, "killed")
	if err.Details["exit_code"] != 137 {
		t.Errorf("expected exit_code=137, got %v", err.Details["exit_code"])
	}
	if err.Details["stderr_tail"] != "killed" {
		t.Errorf("expected stderr tail, got %v", err.Details["stderr_tail"])
	}
}

func TestJoinMismatch(t *testing.T) {
	err := JoinMismatch("merge-inputs", "s2_3", "left")
	if err.Code != ErrCodeJoinMismatch {
		t.Fatalf("expected JOIN_MISMATCH, got %s", err.Code)
	}
	if !strings.Contains(err.Message, `"s2_3"`) {
		t.Errorf("expected key in message, got %q", err.Message)
	}
	dup := DuplicateKey("merge-inputs", "s1_1", "right")
	if dup.Code != ErrCodeJoinMismatch {
		t.Fatalf("expected JOIN_MISMATCH for duplicates, got %s", dup.Code)
	}
}

func TestTaskSkipped_SortsUpstream(t *testing.T) {
	root := TaskExecution("A", 1, "")
	err := TaskSkipped("C", []string{"B", "A"}, root)
	ups := err.Details["upstream"].([]string)
	if ups[0] != "A" || ups[1] != "B" {
		t.Errorf("expected sorted upstream, got %v", ups)
	}
	if !stderrors.Is(err, root) {
		t.Error("expected root cause in chain")
	}
}

func TestCodeOfAndIsCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
	}{
		{"app error", TaskTimeout("t", "1s"), ErrCodeTaskTimeout},
		{"wrapped", fmt.Errorf("ctx: %w", Configuration("", "bad")), ErrCodeConfiguration},
		{"plain", stderrors.New("boom"), ErrCodeInternal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CodeOf(tc.err); got != tc.code {
				t.Errorf("CodeOf: expected %s, got %s", tc.code, got)
			}
		})
	}

	skipped := TaskSkipped("C", []string{"A"}, TaskExecution("A", 2, ""))
	if !IsCode(skipped, ErrCodeTaskExecution) {
		t.Error("expected TASK_EXECUTION_ERROR somewhere in the chain")
	}
	if IsCode(skipped, ErrCodeJoinMismatch) {
		t.Error("did not expect JOIN_MISMATCH in the chain")
	}

	joined := stderrors.Join(Configuration("genome", "missing"), fmt.Errorf("wrap: %w", JoinMismatch("j", "S1", "left")))
	if !IsCode(joined, ErrCodeJoinMismatch) || !IsCode(joined, ErrCodeConfiguration) {
		t.Error("expected both codes in the joined error")
	}
	if IsCode(joined, ErrCodeTaskTimeout) {
		t.Error("did not expect TASK_TIMEOUT in the joined error")
	}
}

func TestRootCause(t *testing.T) {
	root := JoinMismatch("j", "k", "left")
	chain := TaskSkipped("D", []string{"C"}, TaskSkipped("C", nil, root))
	if got := RootCause(chain); got != root {
		t.Errorf("expected root join mismatch, got %v", got)
	}
	if got := RootCause(root); got != root {
		t.Errorf("root of a root should be itself, got %v", got)
	}
}

func TestAsAppError(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", Internal(stderrors.New("x")))
	appErr, ok := AsAppError(wrapped)
	if !ok {
		t.Fatal("expected AppError")
	}
	if appErr.Code != ErrCodeInternal {
		t.Errorf("expected INTERNAL_ERROR, got %s", appErr.Code)
	}
	if IsAppError(stderrors.New("plain")) {
		t.Error("plain error is not an AppError")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(ErrCodeInternal, "x").WithDetails(map[string]any{"a": 1}).WithDetail("b", 2)
	if err.Details["a"] != 1 || err.Details["b"] != 2 {
		t.Errorf("unexpected details %v", err.Details)
	}
}
