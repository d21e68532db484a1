// Package worker implements the CPU-bound payload executed by the hidden
// worker subcommand. It communicates completion solely through its exit code
// and writes progress lines to stdout; the task executor never signals it.
package worker
