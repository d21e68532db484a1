// Package task runs the CPU-bound worker payload in an isolated OS process
// so a fault or busy loop in the payload can never block the controller.
//
// Output streams back line by line in emission order; each run resolves
// exactly once regardless of how many stream, close, or error events the
// worker produces. Start requests while a run is active are rejected with
// ErrTaskActive; the executor never queues and never launches a second
// concurrent worker. The worker self-terminates and is never sent a signal;
// callers wanting a time bound layer it on top of Run.Wait.
package task
