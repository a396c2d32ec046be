package workflow

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/kbukum/varflow/config"
	"github.com/kbukum/varflow/dag"
	"github.com/kbukum/varflow/dataflow"
	"github.com/kbukum/varflow/errors"
	"github.com/kbukum/varflow/executor"
	"github.com/kbukum/varflow/logger"
	"github.com/kbukum/varflow/observability"
	"github.com/kbukum/varflow/resilience"
)

// killGracePeriod is the SIGTERM to SIGKILL delay for canceled tools.
const killGracePeriod = 10 * time.Second

// RunOptions carries the collaborators of a run. Zero values are replaced
// by defaults.
type RunOptions struct {
	RunID string
	// Logger defaults to the global logger.
	Logger *logger.Logger
	// Registry defaults to the external tools of cfg on the launcher of
	// the selected profile.
	Registry *executor.Registry
	// Metrics is optional.
	Metrics *observability.TaskMetrics
}

// Result is the outcome of a run.
type Result struct {
	Report  *dag.Report
	Outputs *Outputs
	// Pass is the final PASS-only VCF, empty when the run failed before it.
	Pass string
}

// Run executes the whole pipeline described by cfg. The report is written
// to the output directory even when tasks failed; the returned error joins
// every root failure.
func Run(ctx context.Context, cfg *config.PipelineConfig, opts RunOptions) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	log = log.WithComponent("workflow")

	reads, err := Ingest(cfg)
	if err != nil {
		return nil, err
	}
	p, err := NewPipeline(cfg, reads)
	if err != nil {
		return nil, err
	}
	if err := p.Prepare(); err != nil {
		return nil, err
	}
	log.Info("reads ingested", logger.Fields(
		"read_groups", len(reads.ReadGroups),
		"samples", len(reads.Lanes),
		"outdir", p.Layout().Root,
	))

	registry := opts.Registry
	if registry == nil {
		registry = NewRegistry(cfg.Tools, launcherFor(cfg, log))
	}
	runner := executor.Chain(
		executor.WithLogging(log),
		executor.WithTracing(),
		executor.WithRetry(cfg.MaxRetries, resilience.DefaultRetryConfig(), log),
		executor.WithTimeout(cfg.TaskTimeout),
	)(registry)

	execOpts := []executor.Option{executor.WithLogger(log)}
	if opts.Metrics != nil {
		execOpts = append(execOpts, executor.WithTaskMetrics(opts.Metrics))
	}
	exec, err := executor.New(runner, cfg.Slots(), execOpts...)
	if err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "pipeline "+cfg.Name)
	defer span.End()
	ctx = logger.ContextWithRunID(ctx, opts.RunID)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	schedOpts := []dag.Option{dag.WithTransitionHook(dag.LogTransitions(log))}
	if opts.Metrics != nil {
		schedOpts = append(schedOpts, dag.WithTransitionHook(dag.RecordSkips(opts.Metrics)))
	}
	if cfg.FailFast {
		schedOpts = append(schedOpts, dag.WithFailFast(cancel))
	}
	sched := dag.NewScheduler(exec, schedOpts...)

	f := dataflow.New(cfg.Name, sched, dataflow.WithLogger(log))
	outputs := p.Build(f)
	if err := writeDOT(filepath.Join(p.Layout().Root, DOTFile), f); err != nil {
		return nil, err
	}

	started := time.Now()
	runErr := f.Run(ctx)

	report := dag.NewReport(opts.RunID, cfg.Name, started, sched.Tasks(), f.Failures())
	reportPath := filepath.Join(p.Layout().Root, ReportFile)
	if err := report.WriteYAML(reportPath); err != nil {
		log.Error("writing report failed", logger.ErrorFields("report", err))
	}

	res := &Result{Report: report, Outputs: outputs}
	if pass := outputs.Pass.Values(); len(pass) > 0 {
		res.Pass = pass[0]
	}
	fields := logger.Fields("summary", report.Summary(), "report", reportPath)
	if runErr != nil {
		log.Error("pipeline failed", logger.MergeWithError(fields, runErr))
		return res, runErr
	}
	fields["pass"] = res.Pass
	log.Info("pipeline finished", fields)
	return res, nil
}

func launcherFor(cfg *config.PipelineConfig, log *logger.Logger) executor.Launcher {
	if cfg.Profile == config.ProfileCluster {
		return executor.NewClusterLauncher(executor.ClusterConfig{
			SubmitCommand: cfg.Cluster.SubmitCommand,
			SubmitRate:    cfg.Cluster.SubmitRate,
			GracePeriod:   killGracePeriod,
			Logger:        log,
		})
	}
	return executor.NewLocalLauncher(killGracePeriod)
}

func writeDOT(path string, f *dataflow.Flow) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Internal(err)
	}
	if err := dag.WriteDOT(file, f.Graph(), f.Name()); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
