// Package controller is the heart of the limpet daemon: it owns the quit
// intent, the surface lifecycle machine, the liveness marker, the supervisor
// installer, and the background task executor, and it alone decides the
// process exit code at final teardown.
package controller
