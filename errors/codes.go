package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Configuration errors. Surfaced before anything is scheduled.
const (
	// ErrCodeConfiguration indicates a missing or invalid mandatory input.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"
	// ErrCodeResourceExhaustion indicates an invalid concurrency bound.
	ErrCodeResourceExhaustion ErrorCode = "RESOURCE_EXHAUSTION"
)

// Dataflow errors. They abort the dependent branch only.
const (
	// ErrCodeJoinMismatch indicates a key seen on only one side of a join.
	ErrCodeJoinMismatch ErrorCode = "JOIN_MISMATCH"
	// ErrCodeTaskExecution indicates the external collaborator failed.
	ErrCodeTaskExecution ErrorCode = "TASK_EXECUTION_ERROR"
	// ErrCodeTaskTimeout indicates a task exceeded its time limit.
	ErrCodeTaskTimeout ErrorCode = "TASK_TIMEOUT"
	// ErrCodeTaskSkipped indicates a task never ran because an input failed.
	ErrCodeTaskSkipped ErrorCode = "TASK_SKIPPED"
)

// Internal errors
const (
	// ErrCodeInternal indicates an unexpected engine error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeCanceled indicates the run was canceled.
	ErrCodeCanceled ErrorCode = "CANCELED"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeTaskExecution: true,
	ErrCodeTaskTimeout:   true,
}

// IsRetryableCode returns true if a failure with this code may succeed when
// the task is run again with identical inputs.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
