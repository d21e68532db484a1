// Package taskstore persists task run history in a SQLite database inside
// the state directory. It implements task.Recorder so the executor can log
// every run's start, terminal result, and observed line count.
package taskstore
