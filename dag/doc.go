// Package dag holds the task side of a dataflow run.
//
// A Graph records the operators of a flow and their edges. BuildLevels
// orders it with Kahn's algorithm and rejects cycles; WriteDOT renders it
// for Graphviz.
//
// The Scheduler owns the task table. Every task moves through
//
//	pending → ready → running → completed | failed
//	pending → skipped
//
// Ready means the inputs are satisfied and the task waits for an executor
// slot. Skipped tasks never ran because an input item failed; their error
// is TASK_SKIPPED wrapping the root cause. Any other move is rejected.
//
// A Report summarises a finished run and is written as YAML.
package dag
