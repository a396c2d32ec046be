// Package dataflow builds and runs keyed stream graphs.
//
// A Flow is assembled from operators that each consume one or two
// channels and return a new one. Every element is an Item carrying its
// lineage key, so pairing and grouping never depend on file names.
// Failures travel as failed items: operators pass them on, Process skips
// the tasks that would consume them, and independent keys keep flowing.
//
// # Operators
//
//   - Map, Filter, FlatMap, KeyBy: per-item transforms
//   - Combine: broadcast pairing against another channel's full content
//   - Join: 1:1 pairing by key; unmatched keys fail with JOIN_MISMATCH
//   - GroupBy: per-key groups of a known size
//   - Collect: barrier emitting one aggregate after the input completes
//   - SplitLines, SplitCsv: fan-out of a file into lines or records
//   - Process: one scheduler task per item, run on the executor
//
// # Usage
//
//	f := dataflow.New("calls", sched)
//	windows := dataflow.SplitLines(dataflow.Value(f, "bed", "", path), "windows", 1)
//	calls := dataflow.Process(windows, "Call", spec)
//	all := dataflow.Gather(dataflow.Collect(calls, "collect"), "out")
//	err := f.Run(ctx)
package dataflow
