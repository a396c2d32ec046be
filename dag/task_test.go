package dag

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to TaskState
		want     bool
	}{
		{TaskPending, TaskReady, true},
		{TaskPending, TaskSkipped, true},
		{TaskPending, TaskRunning, false},
		{TaskPending, TaskCompleted, false},
		{TaskReady, TaskRunning, true},
		{TaskReady, TaskFailed, true},
		{TaskReady, TaskCompleted, false},
		{TaskRunning, TaskCompleted, true},
		{TaskRunning, TaskFailed, true},
		{TaskRunning, TaskSkipped, false},
		{TaskCompleted, TaskRunning, false},
		{TaskFailed, TaskReady, false},
		{TaskSkipped, TaskReady, false},
	}
	for _, tc := range tests {
		t.Run(tc.from.String()+"->"+tc.to.String(), func(t *testing.T) {
			if got := CanTransition(tc.from, tc.to); got != tc.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestTaskStateText(t *testing.T) {
	for s := TaskPending; s < maxTaskState; s++ {
		text, _ := s.MarshalText()
		var back TaskState
		if err := back.UnmarshalText(text); err != nil || back != s {
			t.Errorf("state %d: round trip gave %v, %v", s, back, err)
		}
	}
	var s TaskState
	if err := s.UnmarshalText([]byte("exploded")); err == nil {
		t.Error("expected error for unknown state")
	}
	if TaskState(42).String() != "TaskState(42)" {
		t.Errorf("unexpected name for out-of-range state: %s", TaskState(42))
	}
}

func TestTerminal(t *testing.T) {
	for s, want := range map[TaskState]bool{
		TaskPending: false, TaskReady: false, TaskRunning: false,
		TaskCompleted: true, TaskFailed: true, TaskSkipped: true,
	} {
		if s.Terminal() != want {
			t.Errorf("%s.Terminal() = %v", s, !want)
		}
	}
}

func TestTaskID(t *testing.T) {
	if got := TaskID("BwaMem", "S1_1"); got != "BwaMem (S1_1)" {
		t.Errorf("unexpected ID %q", got)
	}
	if got := TaskID("MergeVcf", ""); got != "MergeVcf" {
		t.Errorf("unexpected ID %q", got)
	}
}
