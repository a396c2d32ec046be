package dag

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/varflow/errors"
)

func TestReportYAML(t *testing.T) {
	started := time.Now().Add(-time.Minute)
	fail := errors.TaskExecution("BwaMem (S1_1)", 1, "oops")
	tasks := []Task{
		{ID: "Faidx (ref)", Process: "Faidx", Key: "ref", State: TaskCompleted,
			Started: started, Finished: started.Add(2 * time.Second), Attempts: 1, Outputs: []string{"ref.fa.fai"}},
		{ID: "BwaMem (S1_1)", Process: "BwaMem", Key: "S1_1", State: TaskFailed, Err: fail},
		{ID: "MergeBamAlignment (S1_1)", Process: "MergeBamAlignment", Key: "S1_1", State: TaskSkipped,
			Deps: []string{"BwaMem (S1_1)"}, Err: errors.TaskSkipped("MergeBamAlignment (S1_1)", []string{"BwaMem (S1_1)"}, fail)},
	}
	join := errors.JoinMismatch("join#1", "S2_1", "left")

	r := NewReport("run-1", "varflow", started, tasks, []error{fail, join})
	if r.Success {
		t.Error("report with failures must not be successful")
	}
	if got := r.Summary(); got != "completed=1 failed=1 skipped=1" {
		t.Errorf("unexpected summary %q", got)
	}

	path := filepath.Join(t.TempDir(), "pipeline_report.yaml")
	if err := r.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	back, err := ReadReport(path)
	if err != nil {
		t.Fatalf("ReadReport: %v", err)
	}
	if back.RunID != "run-1" || len(back.Tasks) != 3 {
		t.Fatalf("unexpected report %+v", back)
	}
	if back.Tasks[0].DurationMS != 2000 || back.Tasks[0].State != TaskCompleted {
		t.Errorf("unexpected first record %+v", back.Tasks[0])
	}
	if back.Tasks[2].Code != string(errors.ErrCodeTaskSkipped) {
		t.Errorf("expected skipped code, got %q", back.Tasks[2].Code)
	}
	if len(back.Failures) != 2 || back.Failures[1].Code != string(errors.ErrCodeJoinMismatch) {
		t.Errorf("unexpected failures %+v", back.Failures)
	}
	if back.Counts["pending"] != 0 || back.Counts["completed"] != 1 {
		t.Errorf("unexpected counts %v", back.Counts)
	}
	if !strings.Contains(back.Failures[0].Message, "exit status 1") {
		t.Errorf("unexpected failure message %q", back.Failures[0].Message)
	}
}

func TestReportSuccess(t *testing.T) {
	r := NewReport("run-2", "varflow", time.Now(), nil, nil)
	if !r.Success {
		t.Error("expected success without failures")
	}
	if r.Summary() != "" {
		t.Errorf("expected empty summary, got %q", r.Summary())
	}
}
