package workflow

import (
	"fmt"
	"strings"

	"github.com/kbukum/varflow/config"
	"github.com/kbukum/varflow/executor"
	"github.com/kbukum/varflow/process"
)

// Task kinds. Each Process operator of the pipeline uses the kind of the
// same name.
const (
	KindStageGenome              = "StageGenome"
	KindBwaIndex                 = "BwaIndex"
	KindFaidx                    = "Faidx"
	KindCreateSequenceDictionary = "CreateSequenceDictionary"
	KindFastqToSam               = "FastqToSam"
	KindMarkIlluminaAdapters     = "MarkIlluminaAdapters"
	KindSamToFastq               = "SamToFastq"
	KindBwaMem                   = "BwaMem"
	KindMergeBamAlignment        = "MergeBamAlignment"
	KindMergeSamples             = "MergeSamples"
	KindGenomeLengths            = "GenomeLengths"
	KindMakeWindows              = "MakeWindows"
	KindFreeBayes                = "FreeBayes"
	KindMergeVcf                 = "MergeVcf"
	KindSelectSnps               = "SelectSnps"
	KindDepthThreshold           = "DepthThreshold"
	KindVariantFiltration        = "VariantFiltration"
	KindPass                     = "Pass"
)

// Invocation parameters.
const (
	ParamReadGroup = "readgroup"
	ParamSample    = "sample"
	ParamLane      = "lane"
	ParamRegion    = "region"
	ParamWindow    = "window"
	ParamThreshold = "threshold"
	ParamReference = "reference"
)

// FilterName marks records above the depth threshold.
const FilterName = "DPFilter"

// NewRegistry registers every task kind: external tools run through
// launcher, the rest in-process.
func NewRegistry(tools config.ToolsConfig, launcher executor.Launcher) *executor.Registry {
	c := commands{tools: tools}
	reg := executor.NewRegistry()
	for kind, build := range map[string]func(executor.Invocation) (process.Command, error){
		KindBwaIndex:                 c.bwaIndex,
		KindFaidx:                    c.faidx,
		KindCreateSequenceDictionary: c.createSequenceDictionary,
		KindFastqToSam:               c.fastqToSam,
		KindMarkIlluminaAdapters:     c.markIlluminaAdapters,
		KindSamToFastq:               c.samToFastq,
		KindBwaMem:                   c.bwaMem,
		KindMergeBamAlignment:        c.mergeBamAlignment,
		KindMergeSamples:             c.mergeSamples,
		KindFreeBayes:                c.freeBayes,
		KindSelectSnps:               c.selectSnps,
		KindVariantFiltration:        c.variantFiltration,
	} {
		reg.Register(kind, &executor.CommandTool{Build: build, Launcher: launcher})
	}
	registerNatives(reg)
	return reg
}

// commands builds the command line of each external tool.
type commands struct {
	tools config.ToolsConfig
}

// tool splits a configured tool such as "java -jar picard.jar" into a
// command with args appended.
func tool(configured string, args ...string) process.Command {
	argv := process.ParsePrefix(configured)
	if len(argv) == 0 {
		return process.Command{Args: args}
	}
	return process.Command{Binary: argv[0], Args: append(argv[1:], args...)}
}

func (c commands) shell(inv executor.Invocation, format string, args ...any) process.Command {
	return process.Shell(c.tools.Shell, inv.Dir, fmt.Sprintf(format, args...))
}

func need(inv executor.Invocation, inputs, outputs int) error {
	if len(inv.Inputs) < inputs || len(inv.Outputs) < outputs {
		return fmt.Errorf("%s needs %d inputs and %d outputs, got %d and %d",
			inv.Kind, inputs, outputs, len(inv.Inputs), len(inv.Outputs))
	}
	return nil
}

func (c commands) bwaIndex(inv executor.Invocation) (process.Command, error) {
	if err := need(inv, 1, 0); err != nil {
		return process.Command{}, err
	}
	return tool(c.tools.Bwa, "index", inv.Inputs[0]), nil
}

func (c commands) faidx(inv executor.Invocation) (process.Command, error) {
	if err := need(inv, 1, 0); err != nil {
		return process.Command{}, err
	}
	return tool(c.tools.Samtools, "faidx", inv.Inputs[0]), nil
}

func (c commands) createSequenceDictionary(inv executor.Invocation) (process.Command, error) {
	if err := need(inv, 1, 1); err != nil {
		return process.Command{}, err
	}
	out := inv.OutputPaths()
	return tool(c.tools.Picard, "CreateSequenceDictionary",
		"R="+inv.Inputs[0],
		"O="+out[0],
	), nil
}

func (c commands) fastqToSam(inv executor.Invocation) (process.Command, error) {
	if err := need(inv, 2, 1); err != nil {
		return process.Command{}, err
	}
	out := inv.OutputPaths()
	sample := inv.Param(ParamSample)
	return tool(c.tools.Picard, "FastqToSam",
		"FASTQ="+inv.Inputs[0],
		"FASTQ2="+inv.Inputs[1],
		"OUTPUT="+out[0],
		"READ_GROUP_NAME="+inv.Param(ParamReadGroup),
		"SAMPLE_NAME="+sample,
		"LIBRARY_NAME="+sample,
		"PLATFORM_UNIT="+inv.Param(ParamLane),
		"PLATFORM=illumina",
	), nil
}

func (c commands) markIlluminaAdapters(inv executor.Invocation) (process.Command, error) {
	if err := need(inv, 1, 2); err != nil {
		return process.Command{}, err
	}
	out := inv.OutputPaths()
	return tool(c.tools.Picard, "MarkIlluminaAdapters",
		"I="+inv.Inputs[0],
		"O="+out[0],
		"M="+out[1],
	), nil
}

func (c commands) samToFastq(inv executor.Invocation) (process.Command, error) {
	if err := need(inv, 1, 1); err != nil {
		return process.Command{}, err
	}
	out := inv.OutputPaths()
	return tool(c.tools.Picard, "SamToFastq",
		"I="+inv.Inputs[0],
		"FASTQ="+out[0],
		"CLIPPING_ATTRIBUTE=XT",
		"CLIPPING_ACTION=2",
		"INTERLEAVE=true",
		"NON_PF=true",
	), nil
}

func (c commands) bwaMem(inv executor.Invocation) (process.Command, error) {
	if err := need(inv, 1, 1); err != nil {
		return process.Command{}, err
	}
	out := inv.OutputPaths()
	return c.shell(inv, "%s mem -M -p %s %s > %s",
		c.tools.Bwa, quote(inv.Param(ParamReference)), quote(inv.Inputs[0]), quote(out[0])), nil
}

func (c commands) mergeBamAlignment(inv executor.Invocation) (process.Command, error) {
	if err := need(inv, 2, 1); err != nil {
		return process.Command{}, err
	}
	out := inv.OutputPaths()
	return tool(c.tools.Picard, "MergeBamAlignment",
		"R="+inv.Param(ParamReference),
		"UNMAPPED_BAM="+inv.Inputs[0],
		"ALIGNED_BAM="+inv.Inputs[1],
		"O="+out[0],
		"CREATE_INDEX=true",
		"ADD_MATE_CIGAR=true",
		"CLIP_ADAPTERS=false",
		"CLIP_OVERLAPPING_READS=true",
		"INCLUDE_SECONDARY_ALIGNMENTS=true",
		"MAX_INSERTIONS_OR_DELETIONS=-1",
		"PRIMARY_ALIGNMENT_STRATEGY=MostDistant",
		"ATTRIBUTES_TO_RETAIN=XS",
	), nil
}

func (c commands) mergeSamples(inv executor.Invocation) (process.Command, error) {
	if err := need(inv, 1, 1); err != nil {
		return process.Command{}, err
	}
	out := inv.OutputPaths()
	return c.shell(inv, "%s merge -f %s %s && %s index %s",
		c.tools.Samtools, quote(out[0]), quoteAll(inv.Inputs), c.tools.Samtools, quote(out[0])), nil
}

func (c commands) freeBayes(inv executor.Invocation) (process.Command, error) {
	if err := need(inv, 1, 1); err != nil {
		return process.Command{}, err
	}
	out := inv.OutputPaths()
	return c.shell(inv, "%s -f %s -r %s %s > %s",
		c.tools.FreeBayes, quote(inv.Param(ParamReference)), quote(inv.Param(ParamRegion)),
		quoteAll(inv.Inputs), quote(out[0])), nil
}

func (c commands) selectSnps(inv executor.Invocation) (process.Command, error) {
	if err := need(inv, 1, 1); err != nil {
		return process.Command{}, err
	}
	out := inv.OutputPaths()
	return c.shell(inv, "%s -f 'TYPE = snp' %s | %s > %s",
		c.tools.VcfFilter, quote(inv.Inputs[0]), c.tools.VcfSort, quote(out[0])), nil
}

func (c commands) variantFiltration(inv executor.Invocation) (process.Command, error) {
	if err := need(inv, 1, 1); err != nil {
		return process.Command{}, err
	}
	threshold := inv.Param(ParamThreshold)
	if threshold == "" {
		return process.Command{}, fmt.Errorf("%s needs the %q parameter", inv.Kind, ParamThreshold)
	}
	out := inv.OutputPaths()
	return tool(c.tools.Gatk, "VariantFiltration",
		"-R", inv.Param(ParamReference),
		"-V", inv.Inputs[0],
		"-O", out[0],
		"--filter-name", FilterName,
		"--filter-expression", "DP > "+threshold,
	), nil
}

// quote single-quotes s for the shell.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func quoteAll(ss []string) string {
	quoted := make([]string, len(ss))
	for i, s := range ss {
		quoted[i] = quote(s)
	}
	return strings.Join(quoted, " ")
}
