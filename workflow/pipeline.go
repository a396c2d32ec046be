package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/kbukum/varflow/config"
	"github.com/kbukum/varflow/dataflow"
	"github.com/kbukum/varflow/errors"
	"github.com/kbukum/varflow/executor"
	"github.com/kbukum/varflow/variant"
)

// Pipeline wires the variant-calling DAG onto a flow.
type Pipeline struct {
	cfg    *config.PipelineConfig
	reads  *Ingestion
	layout Layout
}

// Outputs are the sinks of a built pipeline, readable after the flow ran.
type Outputs struct {
	Merged    *dataflow.Sink[MergedAlignment]
	Regions   *dataflow.Sink[Region]
	Calls     *dataflow.Sink[WindowCalls]
	Threshold *dataflow.Sink[Threshold]
	Pass      *dataflow.Sink[string]
}

// Ingest loads the read groups named by the configuration.
func Ingest(cfg *config.PipelineConfig) (*Ingestion, error) {
	if cfg.ReadsFile != "" {
		return ParseManifest(cfg.ReadsFile)
	}
	return GlobPairs(cfg.Reads)
}

// NewPipeline prepares the wiring for reads. Output paths are absolute.
func NewPipeline(cfg *config.PipelineConfig, reads *Ingestion) (*Pipeline, error) {
	root, err := filepath.Abs(cfg.Outdir)
	if err != nil {
		return nil, errors.Configuration("outdir", err.Error()).WithCause(err)
	}
	return &Pipeline{cfg: cfg, reads: reads, layout: Layout{Root: root}}, nil
}

// Prepare creates the output directory and, for manifest input, writes the
// ingested manifest bytes into it. The flow splits that copy.
func (p *Pipeline) Prepare() error {
	if err := os.MkdirAll(p.layout.Root, 0o755); err != nil {
		return errors.Configuration("outdir", err.Error()).WithCause(err)
	}
	if p.reads.Manifest == nil {
		return nil
	}
	if err := os.WriteFile(p.layout.Manifest(), p.reads.Manifest, 0o644); err != nil {
		return errors.Configuration("outdir", err.Error()).WithCause(err)
	}
	return nil
}

// Layout returns the output directory layout.
func (p *Pipeline) Layout() Layout { return p.layout }

// Build registers every operator of the pipeline on f.
func (p *Pipeline) Build(f *dataflow.Flow) *Outputs {
	ref, bwaIndex, fai := p.genome(f)
	fastq, unmapped := p.readPrep(f)
	merged := p.align(fastq, unmapped, bwaIndex, ref)
	cohort := dataflow.Map(dataflow.Collect(merged, "collectSamples"), "cohort",
		func(_ context.Context, ms []MergedAlignment) (Cohort, error) { return newCohort(ms), nil })
	regions := p.windows(fai)
	calls := p.call(regions, cohort, ref)
	threshold, pass := p.filter(calls, ref)

	return &Outputs{
		Merged:    dataflow.Gather(merged, "mergedAlignments"),
		Regions:   dataflow.Gather(regions, "regions"),
		Calls:     dataflow.Gather(calls, "windowCalls"),
		Threshold: dataflow.Gather(threshold, "threshold"),
		Pass:      dataflow.Gather(pass, "pass"),
	}
}

// genome stages the reference and builds its indexes.
func (p *Pipeline) genome(f *dataflow.Flow) (ref *dataflow.Channel[Reference], bwa *dataflow.Channel[BwaIndex], fai *dataflow.Channel[string]) {
	l := p.layout
	name := filepath.Base(p.cfg.Genome)
	staged := filepath.Join(l.Stage(StageGenome), name)

	genome := dataflow.Value(f, "genome", name, p.cfg.Genome)
	fasta := dataflow.Process(genome, KindStageGenome, dataflow.ProcessSpec[string, string]{
		Invocation: func(_ string, path string) executor.Invocation {
			return executor.Invocation{
				Inputs:  []string{path},
				Outputs: []string{staged},
				Dir:     l.Work(StageGenome, KindStageGenome),
			}
		},
		Output: firstOutput[string],
	})

	bwa = dataflow.Process(fasta, KindBwaIndex, dataflow.ProcessSpec[string, BwaIndex]{
		Invocation: func(_ string, fa string) executor.Invocation {
			return executor.Invocation{
				Inputs:  []string{fa},
				Outputs: []string{fa + ".bwt"},
				Dir:     l.Work(StageGenome, KindBwaIndex),
			}
		},
		Output: func(_ string, fa string, _ *executor.Outcome) (BwaIndex, error) {
			return BwaIndex{Prefix: fa}, nil
		},
	})
	fai = dataflow.Process(fasta, KindFaidx, dataflow.ProcessSpec[string, string]{
		Invocation: func(_ string, fa string) executor.Invocation {
			return executor.Invocation{
				Inputs:  []string{fa},
				Outputs: []string{fa + ".fai"},
				Dir:     l.Work(StageGenome, KindFaidx),
			}
		},
		Output: firstOutput[string],
	})
	dict := dataflow.Process(fasta, KindCreateSequenceDictionary, dataflow.ProcessSpec[string, string]{
		Invocation: func(_ string, fa string) executor.Invocation {
			return executor.Invocation{
				Inputs:  []string{fa},
				Outputs: []string{strings.TrimSuffix(fa, filepath.Ext(fa)) + ".dict"},
				Dir:     l.Work(StageGenome, KindCreateSequenceDictionary),
			}
		},
		Output: firstOutput[string],
	})

	withFai := dataflow.Combine(fasta, fai, "genomeWithFai")
	withDict := dataflow.Combine(withFai, dict, "genomeWithDict")
	ref = dataflow.Map(withDict, "reference",
		func(_ context.Context, v dataflow.Pair[dataflow.Pair[string, string], string]) (Reference, error) {
			return Reference{Fasta: v.Left.Left, Fai: v.Left.Right, Dict: v.Right}, nil
		})
	return ref, bwa, fai
}

// readGroups emits the ingested read groups keyed by read group ID. The
// manifest copy written by Prepare is split into records in the flow; lane
// numbers come from the record position, as in ParseManifest.
func (p *Pipeline) readGroups(f *dataflow.Flow) *dataflow.Channel[ReadGroup] {
	var rgs *dataflow.Channel[ReadGroup]
	if p.reads.Manifest != nil {
		manifest := dataflow.Value(f, "readsFile", "", p.layout.Manifest())
		records := dataflow.SplitCsv(manifest, "splitManifest", ManifestSeparator)
		rgs = dataflow.MapIndexed(records, "readGroups",
			func(_ context.Context, index int, rec []string) (ReadGroup, error) {
				return readGroupFromRecord(index, rec)
			})
	} else {
		rgs = dataflow.FromSlice(f, "readPairs", p.reads.ReadGroups)
	}
	return dataflow.KeyBy(rgs, "keyByReadGroup", func(rg ReadGroup) string { return rg.ID })
}

// readPrep converts each read pair to an unmapped BAM, marks adapters and
// extracts interleaved FASTQ. It returns the FASTQ and the unmapped BAM.
func (p *Pipeline) readPrep(f *dataflow.Flow) (*dataflow.Channel[Fastq], *dataflow.Channel[UnmappedBam]) {
	l := p.layout
	unmapped := dataflow.Process(p.readGroups(f), KindFastqToSam, dataflow.ProcessSpec[ReadGroup, UnmappedBam]{
		Invocation: func(key string, rg ReadGroup) executor.Invocation {
			return executor.Invocation{
				Inputs: []string{rg.Reads[0], rg.Reads[1]},
				Params: map[string]string{
					ParamReadGroup: rg.ID,
					ParamSample:    rg.Sample,
					ParamLane:      strconv.Itoa(rg.Lane),
				},
				Outputs: []string{rg.ID + ".unmapped.bam"},
				Dir:     l.Task(StageFastqToSam, key),
			}
		},
		Output: func(_ string, rg ReadGroup, out *executor.Outcome) (UnmappedBam, error) {
			return UnmappedBam{ReadGroup: rg, Bam: out.Outputs[0]}, nil
		},
	})

	marked := dataflow.Process(unmapped, KindMarkIlluminaAdapters, dataflow.ProcessSpec[UnmappedBam, UnmappedBam]{
		Invocation: func(key string, u UnmappedBam) executor.Invocation {
			return executor.Invocation{
				Inputs:  []string{u.Bam},
				Outputs: []string{u.ReadGroup.ID + ".marked.bam", u.ReadGroup.ID + ".marked_metrics.txt"},
				Dir:     l.Task(StageMarkIlluminaAdapters, key),
			}
		},
		Output: func(_ string, u UnmappedBam, out *executor.Outcome) (UnmappedBam, error) {
			return UnmappedBam{ReadGroup: u.ReadGroup, Bam: out.Outputs[0]}, nil
		},
	})

	fastq := dataflow.Process(marked, KindSamToFastq, dataflow.ProcessSpec[UnmappedBam, Fastq]{
		Invocation: func(key string, u UnmappedBam) executor.Invocation {
			return executor.Invocation{
				Inputs:  []string{u.Bam},
				Outputs: []string{u.ReadGroup.ID + ".interleaved.fq"},
				Dir:     l.Task(StageSamToFastq, key),
			}
		},
		Output: func(_ string, u UnmappedBam, out *executor.Outcome) (Fastq, error) {
			return Fastq{ReadGroup: u.ReadGroup, Path: out.Outputs[0]}, nil
		},
	})
	return fastq, unmapped
}

// align maps each read group, merges it with its unmapped BAM and merges
// the lanes of each sample.
func (p *Pipeline) align(
	fastq *dataflow.Channel[Fastq],
	unmapped *dataflow.Channel[UnmappedBam],
	bwaIndex *dataflow.Channel[BwaIndex],
	ref *dataflow.Channel[Reference],
) *dataflow.Channel[MergedAlignment] {
	l := p.layout
	mapped := dataflow.Process(dataflow.Combine(fastq, bwaIndex, "fastqWithIndex"), KindBwaMem,
		dataflow.ProcessSpec[dataflow.Pair[Fastq, BwaIndex], MappedBam]{
			Invocation: func(key string, v dataflow.Pair[Fastq, BwaIndex]) executor.Invocation {
				return executor.Invocation{
					Inputs:  []string{v.Left.Path},
					Params:  map[string]string{ParamReference: v.Right.Prefix},
					Outputs: []string{v.Left.ReadGroup.ID + ".mapped.sam"},
					Dir:     l.Task(StageBwaMem, key),
				}
			},
			Output: func(_ string, v dataflow.Pair[Fastq, BwaIndex], out *executor.Outcome) (MappedBam, error) {
				return MappedBam{ReadGroup: v.Left.ReadGroup, Sam: out.Outputs[0]}, nil
			},
		})

	joined := dataflow.Join(unmapped, mapped, "joinAlignments")
	type mergeInput = dataflow.Pair[dataflow.Pair[UnmappedBam, MappedBam], Reference]
	aligned := dataflow.Process(dataflow.Combine(joined, ref, "alignmentsWithReference"), KindMergeBamAlignment,
		dataflow.ProcessSpec[mergeInput, AlignedBam]{
			Invocation: func(key string, v mergeInput) executor.Invocation {
				return executor.Invocation{
					Inputs:  []string{v.Left.Left.Bam, v.Left.Right.Sam},
					Params:  map[string]string{ParamReference: v.Right.Fasta},
					Outputs: []string{v.Left.Left.ReadGroup.ID + ".merged.bam"},
					Dir:     l.Task(StageMergeBamAlignment, key),
				}
			},
			Output: func(_ string, v mergeInput, out *executor.Outcome) (AlignedBam, error) {
				return AlignedBam{ReadGroup: v.Left.Left.ReadGroup, Bam: out.Outputs[0]}, nil
			},
		})

	// Failed lanes must reach their sample's group too.
	bySample := dataflow.Rekey(aligned, "keyBySample", p.sampleOf)
	lanes := dataflow.GroupBy(bySample, "groupLanes", func(sample string) int { return p.reads.Lanes[sample] })
	return dataflow.Process(lanes, KindMergeSamples, dataflow.ProcessSpec[[]AlignedBam, MergedAlignment]{
		Invocation: func(sample string, group []AlignedBam) executor.Invocation {
			bams := make([]string, len(group))
			for i, a := range group {
				bams[i] = a.Bam
			}
			return executor.Invocation{
				Inputs:  bams,
				Outputs: []string{sample + ".bam", sample + ".bam.bai"},
				Dir:     l.Task(StageMergeSamples, sample),
			}
		},
		Output: func(sample string, _ []AlignedBam, out *executor.Outcome) (MergedAlignment, error) {
			return MergedAlignment{Sample: sample, Bam: out.Outputs[0], Bai: out.Outputs[1]}, nil
		},
	})
}

// windows partitions the genome into calling regions keyed by region.
func (p *Pipeline) windows(fai *dataflow.Channel[string]) *dataflow.Channel[Region] {
	l := p.layout
	lengths := dataflow.Process(fai, KindGenomeLengths, dataflow.ProcessSpec[string, string]{
		Invocation: func(_ string, path string) executor.Invocation {
			return executor.Invocation{
				Inputs:  []string{path},
				Outputs: []string{filepath.Join(l.Stage(StageWindows), "genome.txt")},
				Dir:     l.Work(StageWindows, KindGenomeLengths),
			}
		},
		Output: firstOutput[string],
	})
	windowFile := dataflow.Process(lengths, KindMakeWindows, dataflow.ProcessSpec[string, string]{
		Invocation: func(_ string, path string) executor.Invocation {
			return executor.Invocation{
				Inputs:  []string{path},
				Params:  map[string]string{ParamWindow: strconv.Itoa(p.cfg.Window)},
				Outputs: []string{filepath.Join(l.Stage(StageWindows), "windows.txt")},
				Dir:     l.Work(StageWindows, KindMakeWindows),
			}
		},
		Output: firstOutput[string],
	})

	lines := dataflow.SplitLines(windowFile, "splitWindows", 1)
	regions := dataflow.MapIndexed(lines, "parseWindows", func(_ context.Context, index int, line string) (Region, error) {
		w, err := variant.ParseWindow(line)
		if err != nil {
			return Region{}, err
		}
		return Region{Index: index, Window: w}, nil
	})
	return dataflow.KeyBy(regions, "keyByRegion", func(r Region) string { return r.Window.String() })
}

// call runs the variant caller once per region over the whole cohort.
func (p *Pipeline) call(
	regions *dataflow.Channel[Region],
	cohort *dataflow.Channel[Cohort],
	ref *dataflow.Channel[Reference],
) *dataflow.Channel[WindowCalls] {
	l := p.layout
	type callInput = dataflow.Pair[dataflow.Pair[Region, Cohort], Reference]
	withCohort := dataflow.Combine(regions, cohort, "regionsWithCohort")
	withRef := dataflow.Combine(withCohort, ref, "regionsWithReference")
	return dataflow.Process(withRef, KindFreeBayes, dataflow.ProcessSpec[callInput, WindowCalls]{
		Invocation: func(key string, v callInput) executor.Invocation {
			region := v.Left.Left
			return executor.Invocation{
				Inputs: v.Left.Right.Bams,
				Params: map[string]string{
					ParamRegion:    region.Window.String(),
					ParamReference: v.Right.Fasta,
				},
				Outputs: []string{fmt.Sprintf("window_%05d.vcf", region.Index+1)},
				Dir:     l.Task(StageFreeBayes, key),
			}
		},
		Output: func(_ string, v callInput, out *executor.Outcome) (WindowCalls, error) {
			return WindowCalls{Region: v.Left.Left, Vcf: out.Outputs[0]}, nil
		},
	})
}

// filter merges the window calls, keeps sorted SNPs, derives the depth
// threshold, applies it and extracts PASS records.
func (p *Pipeline) filter(
	calls *dataflow.Channel[WindowCalls],
	ref *dataflow.Channel[Reference],
) (*dataflow.Channel[Threshold], *dataflow.Channel[string]) {
	l := p.layout
	all := dataflow.Collect(calls, "collectCalls")
	merged := dataflow.Process(all, KindMergeVcf, dataflow.ProcessSpec[[]WindowCalls, string]{
		Invocation: func(_ string, windows []WindowCalls) executor.Invocation {
			ordered := append([]WindowCalls(nil), windows...)
			sort.Slice(ordered, func(i, j int) bool { return ordered[i].Region.Index < ordered[j].Region.Index })
			vcfs := make([]string, len(ordered))
			for i, c := range ordered {
				vcfs[i] = c.Vcf
			}
			return executor.Invocation{
				Inputs:  vcfs,
				Outputs: []string{"merged.vcf"},
				Dir:     l.Stage(StageMergeVcf),
			}
		},
		Output: firstOutput[[]WindowCalls],
	})

	snps := dataflow.Process(merged, KindSelectSnps, dataflow.ProcessSpec[string, string]{
		Invocation: func(_ string, vcf string) executor.Invocation {
			return executor.Invocation{
				Inputs:  []string{vcf},
				Outputs: []string{"snps.sorted.vcf"},
				Dir:     l.Stage(StageSelectSnps),
			}
		},
		Output: firstOutput[string],
	})

	threshold := dataflow.Process(snps, KindDepthThreshold, dataflow.ProcessSpec[string, Threshold]{
		Invocation: func(_ string, vcf string) executor.Invocation {
			return executor.Invocation{
				Inputs:  []string{vcf},
				Outputs: []string{filepath.Join(l.Stage(StageSelectSnps), "dp_threshold.txt")},
				Dir:     l.Work(StageSelectSnps, KindDepthThreshold),
			}
		},
		Output: func(_ string, vcf string, out *executor.Outcome) (Threshold, error) {
			v, err := readThreshold(out.Outputs[0])
			if err != nil {
				return Threshold{}, err
			}
			return Threshold{Vcf: vcf, Value: v}, nil
		},
	})

	type filterInput = dataflow.Pair[Threshold, Reference]
	withRef := dataflow.Combine(threshold, ref, "thresholdWithReference")
	filtered := dataflow.Process(withRef, KindVariantFiltration, dataflow.ProcessSpec[filterInput, string]{
		Invocation: func(_ string, v filterInput) executor.Invocation {
			return executor.Invocation{
				Inputs: []string{v.Left.Vcf},
				Params: map[string]string{
					ParamThreshold: variant.FormatThreshold(v.Left.Value),
					ParamReference: v.Right.Fasta,
				},
				Outputs: []string{"filtered.vcf"},
				Dir:     l.Stage(StageVariantFiltration),
			}
		},
		Output: firstOutput[filterInput],
	})

	pass := dataflow.Process(filtered, KindPass, dataflow.ProcessSpec[string, string]{
		Invocation: func(_ string, vcf string) executor.Invocation {
			return executor.Invocation{
				Inputs:  []string{vcf},
				Outputs: []string{"pass.vcf"},
				Dir:     l.Stage(StagePass),
			}
		},
		Output: firstOutput[string],
	})
	return threshold, pass
}

// sampleOf maps a read group ID to its sample.
func (p *Pipeline) sampleOf(id string) string {
	for _, rg := range p.reads.ReadGroups {
		if rg.ID == id {
			return rg.Sample
		}
	}
	return id
}

func firstOutput[I any](_ string, _ I, out *executor.Outcome) (string, error) {
	if len(out.Outputs) == 0 {
		return "", errors.New(errors.ErrCodeInternal, "task produced no output")
	}
	return out.Outputs[0], nil
}
