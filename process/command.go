package process

import (
	"io"
	"time"
)

// Command configures a subprocess to execute.
type Command struct {
	// Binary is the executable path or name (resolved via PATH).
	Binary string
	// Args are the command-line arguments.
	Args []string
	// Dir is the working directory. If empty, uses the current directory.
	Dir string
	// Env is additional environment variables (key=value). Merged with os.Environ.
	Env []string
	// Stdin provides input to the process. May be nil.
	Stdin io.Reader
	// Log receives a copy of everything written to stderr. May be nil.
	Log io.Writer
	// GracePeriod is how long to wait after SIGTERM before SIGKILL.
	// Defaults to 5 seconds if zero.
	GracePeriod time.Duration
}

// Shell builds a command that runs script through shell in dir.
func Shell(shell, dir, script string) Command {
	if shell == "" {
		shell = "/bin/sh"
	}
	return Command{
		Binary: shell,
		Args:   []string{"-c", script},
		Dir:    dir,
	}
}

// Argv returns the full argument vector, binary first.
func (c Command) Argv() []string {
	return append([]string{c.Binary}, c.Args...)
}
