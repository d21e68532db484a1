// Package lifecycle implements the quit-intent record, the exit classifier,
// and the window surface state machine.
//
// The quit intent is write-once: the first non-unknown decision wins and
// nothing can override a recorded user-requested exit. The exit classifier is
// a pure mapping from intent to process exit code, consulted exactly once at
// final teardown. The surface machine vetoes every close and quit path except
// the sanctioned exit control, moving the surface to hidden (and scheduling
// re-creation) instead of letting it reach a terminal destroyed state.
package lifecycle
