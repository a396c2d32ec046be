// Package variant holds the small genomic computations the workflow runs
// in-process: contig lengths from a FASTA index, window partitioning,
// per-window VCF merging, the depth threshold and PASS extraction.
package variant
