package executor

import (
	stderrors "errors"
	"time"

	"github.com/kbukum/varflow/logger"
	"github.com/kbukum/varflow/process"
	"github.com/kbukum/varflow/resilience"
)

// ClusterConfig configures job submission through a batch scheduler.
type ClusterConfig struct {
	// SubmitCommand prefixes every command, e.g. "srun --ntasks=1".
	SubmitCommand string
	// SubmitRate caps submissions per second. Zero disables the cap.
	SubmitRate float64
	// GracePeriod is the SIGTERM→SIGKILL delay on cancellation.
	GracePeriod time.Duration
	// Logger receives a debug line whenever a submission is held back.
	Logger *logger.Logger
}

// NewLocalLauncher runs commands directly on this host.
func NewLocalLauncher(gracePeriod time.Duration) *process.Adapter {
	return process.NewAdapter(process.Config{
		Name:        "local",
		GracePeriod: gracePeriod,
	})
}

// NewClusterLauncher runs commands through the submit command, throttled to
// SubmitRate launches per second.
func NewClusterLauncher(cfg ClusterConfig) *process.Runner {
	adapter := process.NewAdapter(process.Config{
		Name:        "cluster",
		GracePeriod: cfg.GracePeriod,
		Prefix:      process.ParsePrefix(cfg.SubmitCommand),
	})
	var limiter *resilience.RateLimiter
	if cfg.SubmitRate > 0 {
		limiter = resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Name:    "cluster-submit",
			Rate:    cfg.SubmitRate,
			Burst:   1,
			OnDelay: logThrottle(cfg.Logger),
		})
	}
	return process.NewRunner(adapter, limiter)
}

func logThrottle(log *logger.Logger) func(string, time.Duration) {
	if log == nil {
		return nil
	}
	return func(name string, delay time.Duration) {
		log.Debug("submission throttled", logger.MergeWithDuration(logger.Fields("limiter", name), delay))
	}
}

func stderrorsIsKilled(err error) bool {
	return stderrors.Is(err, process.ErrKilled)
}
