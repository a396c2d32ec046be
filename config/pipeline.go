package config

import (
	"runtime"
	"time"

	"github.com/kbukum/varflow/logger"
	"github.com/kbukum/varflow/validation"
)

// Execution profiles.
const (
	ProfileLocal   = "local"
	ProfileCluster = "cluster"
)

// PipelineConfig is the complete run configuration.
type PipelineConfig struct {
	Name      string `yaml:"name" mapstructure:"name"`
	Genome    string `yaml:"genome" mapstructure:"genome" validate:"required"`
	Reads     string `yaml:"reads" mapstructure:"reads" validate:"required_without=ReadsFile,excluded_with=ReadsFile"`
	ReadsFile string `yaml:"reads_file" mapstructure:"reads_file" validate:"required_without=Reads"`
	Outdir    string `yaml:"outdir" mapstructure:"outdir" validate:"required"`

	Threads   int    `yaml:"threads" mapstructure:"threads" validate:"gte=1"`
	Window    int    `yaml:"window" mapstructure:"window" validate:"gte=1"`
	QueueSize int    `yaml:"queueSize" mapstructure:"queuesize" validate:"gte=1"`
	Profile   string `yaml:"profile" mapstructure:"profile" validate:"oneof=local cluster"`

	FailFast    bool          `yaml:"fail_fast" mapstructure:"fail_fast"`
	TaskTimeout time.Duration `yaml:"task_timeout" mapstructure:"task_timeout"`
	MaxRetries  int           `yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0"`

	Cluster   ClusterConfig   `yaml:"cluster" mapstructure:"cluster"`
	Tools     ToolsConfig     `yaml:"tools" mapstructure:"tools"`
	Logging   logger.Config   `yaml:"logging" mapstructure:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
}

// ClusterConfig configures submission for the cluster profile.
type ClusterConfig struct {
	// SubmitCommand prefixes every external command, e.g. "srun --ntasks=1".
	SubmitCommand string `yaml:"submit_command" mapstructure:"submit_command"`
	// SubmitRate caps submissions per second. Zero disables the cap.
	SubmitRate float64 `yaml:"submit_rate" mapstructure:"submit_rate" validate:"gte=0"`
}

// ToolsConfig holds the executable used for each external collaborator.
type ToolsConfig struct {
	Picard    string `yaml:"picard" mapstructure:"picard" validate:"required"`
	Bwa       string `yaml:"bwa" mapstructure:"bwa" validate:"required"`
	Samtools  string `yaml:"samtools" mapstructure:"samtools" validate:"required"`
	FreeBayes string `yaml:"freebayes" mapstructure:"freebayes" validate:"required"`
	VcfFilter string `yaml:"vcffilter" mapstructure:"vcffilter" validate:"required"`
	VcfSort   string `yaml:"vcfsort" mapstructure:"vcfsort" validate:"required"`
	Gatk      string `yaml:"gatk" mapstructure:"gatk" validate:"required"`
	Shell     string `yaml:"shell" mapstructure:"shell" validate:"required"`
}

// TelemetryConfig enables OpenTelemetry export when Endpoint is set.
type TelemetryConfig struct {
	Endpoint   string        `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure   bool          `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64       `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
	Interval   time.Duration `yaml:"interval" mapstructure:"interval"`
}

// Enabled reports whether telemetry export is configured.
func (t TelemetryConfig) Enabled() bool { return t.Endpoint != "" }

// Defaults returns the built-in value of every configuration key.
func Defaults() map[string]any {
	return map[string]any{
		"name":       "varflow",
		"genome":     "",
		"reads":      "",
		"reads_file": "",
		"outdir":     "results",

		"threads":   runtime.NumCPU(),
		"window":    100000,
		"queuesize": 20,
		"profile":   ProfileLocal,

		"fail_fast":    false,
		"task_timeout": "0s",
		"max_retries":  0,

		"cluster.submit_command": "",
		"cluster.submit_rate":    0.0,

		"tools.picard":    "picard",
		"tools.bwa":       "bwa",
		"tools.samtools":  "samtools",
		"tools.freebayes": "freebayes",
		"tools.vcffilter": "vcffilter",
		"tools.vcfsort":   "vcfsort",
		"tools.gatk":      "gatk",
		"tools.shell":     "/bin/sh",

		"logging.level":     "info",
		"logging.format":    "console",
		"logging.output":    "stderr",
		"logging.no_color":  false,
		"logging.timestamp": true,

		"telemetry.endpoint":    "",
		"telemetry.insecure":    true,
		"telemetry.sample_rate": 1.0,
		"telemetry.interval":    "15s",
	}
}

// ApplyDefaults fills values that have no meaningful zero.
func (c *PipelineConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "varflow"
	}
	if c.Outdir == "" {
		c.Outdir = "results"
	}
	if c.Profile == "" {
		c.Profile = ProfileLocal
	}
	c.Logging.ApplyDefaults()
}

// Validate checks the configuration. The returned error is a
// CONFIGURATION_ERROR; validation.OnlyMissing tells whether every problem is
// an absent mandatory argument.
func (c *PipelineConfig) Validate() error {
	v := validation.New()
	v.Merge(validation.ValidateStruct(c))
	v.FileExists("genome", c.Genome)
	v.FileExists("reads_file", c.ReadsFile)
	v.Custom(c.TaskTimeout >= 0, "task_timeout", "must not be negative")
	if err := c.Logging.Validate(); err != nil {
		v.AddError("logging", validation.TagInvalid, err.Error())
	}
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// Slots returns the concurrency bound for the selected profile.
func (c *PipelineConfig) Slots() int {
	if c.Profile == ProfileCluster {
		return c.QueueSize
	}
	return c.Threads
}
