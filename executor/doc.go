// Package executor runs pipeline tasks against external tools.
//
// A Runner executes one Invocation. The Registry is the Runner that maps an
// invocation's kind to a Tool: a CommandTool launches a subprocess through a
// Launcher, a NativeTool runs Go code in process. Middleware adds logging,
// tracing, timeouts and retries around any Runner.
//
// The Executor bounds how many invocations run at once. Invocations over the
// bound wait for a slot; none is dropped.
//
//	reg := executor.NewRegistry()
//	reg.Register("Faidx", &executor.CommandTool{Build: faidxCommand, Launcher: executor.NewLocalLauncher(0)})
//
//	runner := executor.Chain(
//	    executor.WithLogging(log),
//	    executor.WithTracing(),
//	    executor.WithTimeout(cfg.TaskTimeout),
//	)(reg)
//
//	exec, err := executor.New(runner, cfg.Slots())
//	out, err := exec.Submit(ctx, inv, onStart)
package executor
