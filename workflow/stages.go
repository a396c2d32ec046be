package workflow

import (
	"path/filepath"
	"strings"
)

// Stage directories under the output directory, in pipeline order.
const (
	StageGenome               = "00_Genome"
	StageFastqToSam           = "01_FastqToSam"
	StageMarkIlluminaAdapters = "02_MarkIlluminaAdapters"
	StageSamToFastq           = "03_SamToFastq"
	StageBwaMem               = "04_BwaMem"
	StageMergeBamAlignment    = "05_MergeBamAlignment"
	StageMergeSamples         = "06_MergeSamples"
	StageWindows              = "07_Windows"
	StageFreeBayes            = "08_FreeBayes"
	StageMergeVcf             = "09_MergeVcf"
	StageSelectSnps           = "10_SelectSnps"
	StageVariantFiltration    = "11_VariantFiltration"
	StagePass                 = "12_Pass"

	// ManifestFile is the name of the manifest copy in the output root.
	ManifestFile = "reads.tsv"
)

// Report files written to the output directory.
const (
	ReportFile = "pipeline_report.yaml"
	DOTFile    = "pipeline_dag.dot"
)

// Layout resolves stage and task directories under an output directory.
type Layout struct {
	Root string
}

// Stage returns the directory of a stage.
func (l Layout) Stage(stage string) string {
	return filepath.Join(l.Root, stage)
}

// Task returns the work directory of the task with key in stage.
func (l Layout) Task(stage, key string) string {
	if key == "" {
		return l.Stage(stage)
	}
	return filepath.Join(l.Root, stage, dirName(key))
}

// Manifest returns the path of the reads manifest copy the run splits.
func (l Layout) Manifest() string {
	return filepath.Join(l.Root, ManifestFile)
}

// Work returns a named work directory inside stage, for tasks that share
// the stage with others.
func (l Layout) Work(stage, name string) string {
	return filepath.Join(l.Root, stage, name)
}

var dirReplacer = strings.NewReplacer("/", "_", ":", "_", " ", "_")

func dirName(key string) string {
	return dirReplacer.Replace(key)
}
