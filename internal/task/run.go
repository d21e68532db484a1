package task

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Result is the terminal outcome of a task run.
type Result struct {
	// Success is true when the worker exited with code zero.
	Success bool
	// ExitCode is the worker's exit code when it ran at all.
	ExitCode int
	// Err is the failure reason when Success is false.
	Err error
}

// Run is one worker invocation. It resolves exactly once; Done is closed at
// resolution and the result never changes afterwards.
type Run struct {
	ID        string
	StartedAt time.Time

	done    chan struct{}
	once    sync.Once
	result  Result
	lineCnt atomic.Int64
}

// Done is closed when the run has resolved.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Result returns the terminal result. Valid only after Done is closed.
func (r *Run) Result() Result {
	return r.result
}

// Resolved reports whether the run has reached a terminal state.
func (r *Run) Resolved() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Lines returns the number of output lines observed so far.
func (r *Run) Lines() int64 {
	return r.lineCnt.Load()
}

// Wait blocks until the run resolves or ctx is done.
func (r *Run) Wait(ctx context.Context) (Result, error) {
	select {
	case <-r.done:
		return r.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// resolve stores the result on first call and reports whether this call won.
func (r *Run) resolve(result Result) bool {
	won := false
	r.once.Do(func() {
		r.result = result
		close(r.done)
		won = true
	})
	return won
}

func (r *Run) countLine() {
	r.lineCnt.Add(1)
}
