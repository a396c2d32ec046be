package workflow

import (
	"fmt"
	"sort"

	"github.com/kbukum/varflow/variant"
)

// ReadGroup is one paired-end read set of a sample, i.e. one lane.
type ReadGroup struct {
	// ID is "<sample>_<lane>" and is unique across the run.
	ID     string
	Sample string
	// Lane is the 1-based position of the record in the ingested input.
	Lane  int
	Reads [2]string
}

func newReadGroup(sample string, lane int, left, right string) ReadGroup {
	return ReadGroup{
		ID:     fmt.Sprintf("%s_%d", sample, lane),
		Sample: sample,
		Lane:   lane,
		Reads:  [2]string{left, right},
	}
}

// Reference is the staged genome and its derived indexes. It is created
// once and shared read-only by every task.
type Reference struct {
	Fasta string
	Fai   string
	Dict  string
}

// BwaIndex is the prefix of the BWA index files.
type BwaIndex struct {
	Prefix string
}

// UnmappedBam is the uBAM of a read group.
type UnmappedBam struct {
	ReadGroup ReadGroup
	Bam       string
}

// Fastq is the interleaved, adapter-clipped FASTQ of a read group.
type Fastq struct {
	ReadGroup ReadGroup
	Path      string
}

// MappedBam is the aligner output of a read group.
type MappedBam struct {
	ReadGroup ReadGroup
	Sam       string
}

// AlignedBam is the merged mapped+unmapped alignment of a read group.
type AlignedBam struct {
	ReadGroup ReadGroup
	Bam       string
}

// MergedAlignment is the per-sample alignment.
type MergedAlignment struct {
	Sample string
	Bam    string
	Bai    string
}

// Cohort is every sample's merged alignment, ordered by sample name.
type Cohort struct {
	Samples []string
	Bams    []string
	Bais    []string
}

func newCohort(merged []MergedAlignment) Cohort {
	sorted := append([]MergedAlignment(nil), merged...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Sample < sorted[j].Sample })
	var c Cohort
	for _, m := range sorted {
		c.Samples = append(c.Samples, m.Sample)
		c.Bams = append(c.Bams, m.Bam)
		c.Bais = append(c.Bais, m.Bai)
	}
	return c
}

// Region is a calling window with its position in the window file.
type Region struct {
	Index  int
	Window variant.Window
}

// WindowCalls is the variant calling output of one region.
type WindowCalls struct {
	Region Region
	Vcf    string
}

// Threshold is the sorted SNP set with its depth threshold.
type Threshold struct {
	Vcf   string
	Value float64
}
