// Command varflow runs the variant-calling pipeline.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/kbukum/varflow/config"
	"github.com/kbukum/varflow/logger"
	"github.com/kbukum/varflow/observability"
	"github.com/kbukum/varflow/validation"
	"github.com/kbukum/varflow/version"
	"github.com/kbukum/varflow/workflow"
)

const serviceName = "varflow"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := newFlagSet(stderr)
	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 1
	}
	if v, _ := flags.GetBool("version"); v {
		fmt.Fprintln(stdout, version.Banner(serviceName))
		return 0
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		if validation.OnlyMissing(err) {
			fmt.Fprintln(stderr, err)
			flags.Usage()
			return 0
		}
		fmt.Fprintf(stderr, "invalid configuration: %v\n", err)
		return 1
	}

	logger.Init(cfg.Logging, serviceName)
	log := logger.GetGlobalLogger()
	runID := uuid.NewString()
	log.Info("starting", logger.Fields(
		"version", version.GetShortVersion(),
		"run_id", runID,
		"profile", cfg.Profile,
		"slots", cfg.Slots(),
	))

	shutdown, err := observability.Init(ctx, observability.Config{
		ServiceName:    serviceName,
		ServiceVersion: version.GetShortVersion(),
		RunID:          runID,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
		Interval:       cfg.Telemetry.Interval,
	})
	if err != nil {
		log.Error("telemetry init failed", logger.ErrorFields("telemetry", err))
		return 1
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Warn("telemetry shutdown failed", logger.ErrorFields("telemetry", err))
		}
	}()

	metrics, err := observability.NewTaskMetrics(observability.Meter(serviceName))
	if err != nil {
		log.Error("metrics init failed", logger.ErrorFields("metrics", err))
		return 1
	}

	res, err := workflow.Run(ctx, cfg, workflow.RunOptions{
		RunID:   runID,
		Logger:  log,
		Metrics: metrics,
	})
	if err != nil {
		if res == nil {
			log.Error("pipeline not started", logger.ErrorFields("run", err))
		}
		return 1
	}
	fmt.Fprintln(stdout, res.Pass)
	return 0
}

func newFlagSet(stderr io.Writer) *pflag.FlagSet {
	flags := pflag.NewFlagSet(serviceName, pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.SortFlags = false

	flags.String("genome", "", "reference genome FASTA (required)")
	flags.String("reads", "", "read pair glob with one {left,right} alternation, e.g. 'data/*_{1,2}.fastq.gz'")
	flags.String("reads_file", "", "tab-separated manifest: readname, left FASTQ, right FASTQ")
	flags.String("outdir", "results", "output directory")
	flags.Int("threads", runtime.NumCPU(), "concurrent tasks for the local profile")
	flags.Int("window", 100000, "variant calling window size in bases")
	flags.Int("queueSize", 20, "concurrent jobs for the cluster profile")
	flags.String("profile", config.ProfileLocal, "executor profile: local or cluster")
	flags.Bool("fail_fast", false, "cancel running tasks after the first failure")
	flags.Duration("task_timeout", 0, "per-task time limit, 0 for none")
	flags.Int("max_retries", 0, "retries for transient task failures")
	flags.String("log_level", "info", "log level: trace, debug, info, warn or error")
	flags.String("config", "", "YAML config file")
	flags.Bool("version", false, "print the version and exit")

	flags.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s --genome <fasta> (--reads <glob> | --reads_file <tsv>) [options]\n\n", serviceName)
		flags.PrintDefaults()
	}
	return flags
}

// loadConfig merges defaults, config file, environment and flags, and
// validates the result.
func loadConfig(flags *pflag.FlagSet) (*config.PipelineConfig, error) {
	opts := []config.LoaderOption{
		config.WithDefaults(config.Defaults()),
		config.WithFlags(flags),
		config.WithFlagKeys(map[string]string{"logging.level": "log_level"}),
	}
	if path, _ := flags.GetString("config"); path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}

	var cfg config.PipelineConfig
	if err := config.LoadConfig(serviceName, &cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
