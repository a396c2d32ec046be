package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code" yaml:"code"`
	// Message is a human-readable error message.
	Message string `json:"message" yaml:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable" yaml:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-" yaml:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// --- Constructors ---

// Configuration creates an error for a missing or invalid input.
func Configuration(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeConfiguration, Message: reason, Details: details,
	}
}

// ResourceExhaustion creates an error for a concurrency bound that cannot be honored.
func ResourceExhaustion(resource string, bound int) *AppError {
	return &AppError{
		Code:    ErrCodeResourceExhaustion,
		Message: fmt.Sprintf("invalid %s bound %d: at least one slot is required", resource, bound),
		Details: map[string]any{"resource": resource, "bound": bound},
	}
}

// JoinMismatch creates an error for a key that only one side of a join produced.
func JoinMismatch(operator, key, side string) *AppError {
	return &AppError{
		Code:    ErrCodeJoinMismatch,
		Message: fmt.Sprintf("%s: key %q appeared only on the %s side", operator, key, side),
		Details: map[string]any{"operator": operator, "key": key, "side": side},
	}
}

// DuplicateKey creates a join error for a key that appeared twice on one side.
func DuplicateKey(operator, key, side string) *AppError {
	return &AppError{
		Code:    ErrCodeJoinMismatch,
		Message: fmt.Sprintf("%s: key %q appeared more than once on the %s side", operator, key, side),
		Details: map[string]any{"operator": operator, "key": key, "side": side},
	}
}

// TaskExecution creates an error for a task whose body failed.
func TaskExecution(task string, exitCode int, stderrTail string) *AppError {
	return &AppError{
		Code:      ErrCodeTaskExecution,
		Message:   fmt.Sprintf("task %s failed with exit status %d", task, exitCode),
		Retryable: true,
		Details: map[string]any{
			"task":        task,
			"exit_code":   exitCode,
			"stderr_tail": stderrTail,
		},
	}
}

// TaskTimeout creates an error for a task that exceeded its time limit.
func TaskTimeout(task, limit string) *AppError {
	return &AppError{
		Code:      ErrCodeTaskTimeout,
		Message:   fmt.Sprintf("task %s exceeded its time limit of %s", task, limit),
		Retryable: true,
		Details:   map[string]any{"task": task, "limit": limit},
	}
}

// TaskSkipped creates an error for a task that was not run because an upstream
// input failed. The root cause is kept as the error cause.
func TaskSkipped(task string, upstream []string, cause error) *AppError {
	ups := append([]string(nil), upstream...)
	sort.Strings(ups)
	return &AppError{
		Code:    ErrCodeTaskSkipped,
		Message: fmt.Sprintf("task %s skipped: upstream failed [%s]", task, strings.Join(ups, ", ")),
		Details: map[string]any{"task": task, "upstream": ups},
		Cause:   cause,
	}
}

// Internal creates an error for an unexpected engine failure.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "unexpected engine error", Cause: cause,
	}
}

// Canceled creates an error for work abandoned because the run was canceled.
func Canceled(cause error) *AppError {
	return &AppError{
		Code: ErrCodeCanceled, Message: "run canceled", Cause: cause,
	}
}

// --- Inspection ---

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of the outermost AppError in err's chain, or
// ErrCodeInternal when err carries none.
func CodeOf(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether any AppError in err's tree has the given code.
// Joined errors are searched too.
func IsCode(err error, code ErrorCode) bool {
	switch e := err.(type) {
	case nil:
		return false
	case *AppError:
		return e.Code == code || IsCode(e.Cause, code)
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if IsCode(inner, code) {
				return true
			}
		}
		return false
	default:
		return IsCode(stderrors.Unwrap(err), code)
	}
}

// RootCause follows skip wrappers down to the failure that started the chain.
func RootCause(err error) error {
	for {
		appErr, ok := err.(*AppError)
		if !ok || appErr.Code != ErrCodeTaskSkipped || appErr.Cause == nil {
			return err
		}
		err = appErr.Cause
	}
}
