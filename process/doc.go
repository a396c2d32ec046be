// Package process runs external tools as subprocesses.
//
// Each command runs in its own process group. Cancelling the context sends
// SIGTERM to the group and SIGKILL after a grace period. Standard error is
// captured with a bounded buffer so failures can report its last lines.
//
// An Adapter applies per-backend defaults such as a submit prefix
// ("srun --ntasks=1") and a Runner adds launch throttling on top of it.
package process
