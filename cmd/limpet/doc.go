// Package main hosts the limpet CLI entrypoint and command graph.
//
// A bare invocation runs the daemon itself: the process either becomes the
// primary instance or forwards an activation to the one already running. The
// remaining commands translate terminal invocations into IPC calls against
// the primary, plus configuration scaffolding and the hidden worker
// entrypoint the task executor spawns.
package main
