package executor

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/kbukum/varflow/errors"
	"github.com/kbukum/varflow/logger"
	"github.com/kbukum/varflow/observability"
	"github.com/kbukum/varflow/resilience"
)

// WithLogging logs the start and the end of every invocation.
func WithLogging(log *logger.Logger) Middleware {
	log = log.WithComponent("executor")
	return func(inner Runner) Runner {
		return RunnerFunc(func(ctx context.Context, inv Invocation) (*Outcome, error) {
			l := log.WithContext(logger.ContextWithTask(ctx, inv.Task))
			l.Debug("task started", logger.Fields(
				logger.FieldProcess, inv.Process,
				logger.FieldKey, inv.Key,
				"attempt", inv.Attempt,
			))

			start := time.Now()
			out, err := inner.Run(ctx, inv)
			fields := logger.DurationFields(inv.Process, time.Since(start))
			if err != nil {
				fields[logger.FieldError] = err.Error()
				fields["code"] = string(errors.CodeOf(err))
				if appErr, ok := errors.AsAppError(err); ok {
					if code, ok := appErr.Details["exit_code"]; ok {
						fields[logger.FieldExitCode] = code
					}
				}
				l.Error("task failed", fields)
				return out, err
			}
			l.Info("task completed", fields)
			return out, nil
		})
	}
}

// WithTracing wraps every invocation in a task span.
func WithTracing() Middleware {
	return func(inner Runner) Runner {
		return RunnerFunc(func(ctx context.Context, inv Invocation) (*Outcome, error) {
			ctx, span := observability.StartTaskSpan(ctx, inv.Process, inv.Task, inv.Key)
			out, err := inner.Run(ctx, inv)
			state := "completed"
			if err != nil {
				state = "failed"
			} else if out != nil {
				observability.SetSpanAttribute(ctx, observability.AttrExitCode, out.ExitCode)
			}
			observability.SetSpanAttribute(ctx, observability.AttrAttempt, inv.Attempt)
			observability.EndTaskSpan(span, state, err)
			return out, err
		})
	}
}

// WithTimeout limits every attempt to limit. Exceeding it yields
// TASK_TIMEOUT. A non-positive limit disables the middleware.
func WithTimeout(limit time.Duration) Middleware {
	return func(inner Runner) Runner {
		if limit <= 0 {
			return inner
		}
		return RunnerFunc(func(ctx context.Context, inv Invocation) (*Outcome, error) {
			tctx, cancel := context.WithTimeout(ctx, limit)
			defer cancel()

			out, err := inner.Run(tctx, inv)
			if err != nil && ctx.Err() == nil && stderrors.Is(tctx.Err(), context.DeadlineExceeded) {
				return out, errors.TaskTimeout(inv.Task, limit.String()).WithCause(err)
			}
			return out, err
		})
	}
}

// WithRetry re-runs retryable failures up to maxRetries more times.
// Zero disables retrying.
func WithRetry(maxRetries int, cfg resilience.RetryConfig, log *logger.Logger) Middleware {
	return func(inner Runner) Runner {
		if maxRetries <= 0 {
			return inner
		}
		cfg.MaxAttempts = maxRetries + 1
		cfg.RetryIf = retryable
		return RunnerFunc(func(ctx context.Context, inv Invocation) (*Outcome, error) {
			policy := cfg
			policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
				if log != nil {
					log.Warn("retrying task", logger.Fields(
						logger.FieldTask, inv.Task,
						"attempt", attempt,
						"backoff", backoff.String(),
						logger.FieldError, err.Error(),
					))
				}
			}
			var attempts int
			out, err := resilience.Retry(ctx, policy, func(attempt int) (*Outcome, error) {
				attempts = attempt
				next := inv
				next.Attempt = attempt
				return inner.Run(ctx, next)
			})
			if out != nil {
				out.Attempts = attempts
			}
			if appErr, ok := errors.AsAppError(err); ok {
				appErr.WithDetail("attempts", attempts)
			}
			return out, err
		})
	}
}

func retryable(err error) bool {
	appErr, ok := errors.AsAppError(err)
	return ok && appErr.Retryable
}
