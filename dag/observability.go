package dag

import (
	"context"

	"github.com/kbukum/varflow/logger"
	"github.com/kbukum/varflow/observability"
)

// LogTransitions logs task state changes. Skips are logged at warn level and
// everything else at debug; tool failures are reported by the executor.
func LogTransitions(log *logger.Logger) TransitionHook {
	log = log.WithComponent("scheduler")
	return func(t Task, from TaskState) {
		fields := logger.Fields(
			logger.FieldTask, t.ID,
			logger.FieldProcess, t.Process,
			logger.FieldKey, t.Key,
			logger.FieldState, t.State.String(),
			"from", from.String(),
		)
		switch t.State {
		case TaskFailed:
			log.Debug("task failed", logger.MergeWithError(fields, t.Err))
		case TaskSkipped:
			log.Warn("task skipped", logger.MergeWithError(fields, t.Err))
		case TaskCompleted:
			log.Debug("task completed", logger.MergeWithDuration(fields, t.Duration()))
		default:
			log.Debug("task state changed", fields)
		}
	}
}

// RecordSkips counts skipped tasks. Executed tasks are counted by the
// executor.
func RecordSkips(metrics *observability.TaskMetrics) TransitionHook {
	return func(t Task, _ TaskState) {
		if t.State == TaskSkipped {
			metrics.RecordSkipped(context.Background(), t.Process)
		}
	}
}
