package process

import (
	"context"
	"strings"
	"time"
)

// Config configures a process adapter.
type Config struct {
	// Name identifies this adapter instance in logs.
	Name string `yaml:"name,omitempty" mapstructure:"name"`
	// GracePeriod is the default grace period for SIGTERM→SIGKILL.
	GracePeriod time.Duration `yaml:"grace_period,omitempty" mapstructure:"grace_period"`
	// Timeout is the default execution timeout. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`
	// Prefix is prepended to every command line, e.g. "srun --ntasks=1".
	Prefix []string `yaml:"prefix,omitempty" mapstructure:"prefix"`
	// Env is added to the environment of every command.
	Env []string `yaml:"env,omitempty" mapstructure:"env"`
}

// Adapter runs commands with adapter-level defaults applied.
type Adapter struct {
	config Config
}

// NewAdapter creates a new process adapter.
func NewAdapter(cfg Config) *Adapter {
	return &Adapter{config: cfg}
}

// ParsePrefix splits a submit command line into its fields.
func ParsePrefix(line string) []string {
	return strings.Fields(line)
}

// Name returns the adapter name.
func (a *Adapter) Name() string {
	return a.config.Name
}

// Wrap applies the configured prefix and environment to cmd.
func (a *Adapter) Wrap(cmd Command) Command {
	if cmd.GracePeriod == 0 && a.config.GracePeriod > 0 {
		cmd.GracePeriod = a.config.GracePeriod
	}
	if len(a.config.Env) > 0 {
		cmd.Env = append(append([]string(nil), a.config.Env...), cmd.Env...)
	}
	if len(a.config.Prefix) > 0 {
		argv := cmd.Argv()
		cmd.Binary = a.config.Prefix[0]
		cmd.Args = append(append([]string(nil), a.config.Prefix[1:]...), argv...)
	}
	return cmd
}

// Run executes a command, applying adapter-level defaults.
func (a *Adapter) Run(ctx context.Context, cmd Command) (*Result, error) {
	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}
	return Run(ctx, a.Wrap(cmd))
}
