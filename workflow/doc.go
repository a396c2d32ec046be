// Package workflow is the variant-calling pipeline built on dataflow.
//
// Read pairs are ingested from a glob or a manifest, converted and
// aligned per lane, merged per sample and called per genome window over
// the whole cohort. The window calls are merged, reduced to SNPs and
// filtered on a depth threshold derived from the data.
//
//	res, err := workflow.Run(ctx, cfg, workflow.RunOptions{RunID: id})
//
// External tools are invoked through the executor Registry built by
// NewRegistry. Small steps (window generation, VCF merge, thresholds) run
// in-process.
package workflow
