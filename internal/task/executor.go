package task

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"

	"limpet/internal/logging"
)

// ErrTaskActive is returned when a start request arrives while a run is
// still in flight. Concurrent unmanaged workers are never allowed; callers
// retry after the active run resolves.
var ErrTaskActive = errors.New("a task run is already active")

var command = exec.Command

// LineFunc observes worker output lines in emission order.
type LineFunc func(line string)

// Recorder persists task run history. Implementations must tolerate being
// called from the executor's relay goroutine.
type Recorder interface {
	TaskStarted(ctx context.Context, id string, startedAt time.Time) error
	TaskFinished(ctx context.Context, id string, result Result, lines int, finishedAt time.Time) error
}

// Options configures an Executor.
type Options struct {
	// Binary is the worker executable, normally the running binary itself.
	Binary string
	// Args are passed verbatim to the worker process.
	Args []string
	// OnLine, when set, receives each worker output line as it arrives.
	OnLine LineFunc
	// Recorder, when set, receives run lifecycle events.
	Recorder Recorder
	// OnFault, when set, receives panics recovered in the relay goroutine.
	// The run is resolved Failed before the fault is reported.
	OnFault func(recovered any)
}

// Executor launches the worker payload as an isolated OS process and relays
// its output without blocking the caller. At most one run is active at a
// time; the worker is trusted to self-terminate and is never signaled.
type Executor struct {
	binary   string
	args     []string
	onLine   LineFunc
	recorder Recorder
	onFault  func(recovered any)
	logger   *slog.Logger

	mu     sync.Mutex
	active *Run
	last   *Run
}

// NewExecutor constructs an executor. A logger of nil uses a no-op logger.
func NewExecutor(opts Options, logger *slog.Logger) (*Executor, error) {
	if opts.Binary == "" {
		return nil, errors.New("worker binary required")
	}
	return &Executor{
		binary:   opts.Binary,
		args:     append([]string{}, opts.Args...),
		onLine:   opts.OnLine,
		recorder: opts.Recorder,
		onFault:  opts.OnFault,
		logger:   logging.NewComponentLogger(logger, "task"),
	}, nil
}

// Start begins a new task run. It returns ErrTaskActive while a run is in
// flight. Spawn failures do not fail the call: the returned run resolves
// Failed with the spawn error as its reason.
func (e *Executor) Start(ctx context.Context) (*Run, error) {
	e.mu.Lock()
	if e.active != nil {
		e.mu.Unlock()
		return nil, ErrTaskActive
	}
	run := newRun()
	e.active = run
	e.last = run
	e.mu.Unlock()

	e.logger.Info("task run starting", logging.String(logging.FieldTaskID, run.ID))
	e.recordStarted(ctx, run)

	cmd := command(e.binary, e.args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		e.finish(ctx, run, Result{Success: false, Err: fmt.Errorf("stdout pipe: %w", err)})
		return run, nil
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		e.finish(ctx, run, Result{Success: false, Err: fmt.Errorf("spawn worker: %w", err)})
		return run, nil
	}

	go func() {
		// A panic here (an observer callback, most likely) must not take
		// down the process silently: resolve the future Failed, then hand
		// the fault to the controller's fault path.
		defer func() {
			if r := recover(); r != nil {
				// Reap the worker so the fault doesn't leak a zombie; it
				// self-terminates, so this wait is bounded.
				_ = cmd.Wait()
				e.finish(ctx, run, Result{Success: false, Err: fmt.Errorf("output relay fault: %v", r)})
				if e.onFault != nil {
					e.onFault(r)
				}
			}
		}()

		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			line := scanner.Text()
			run.countLine()
			if e.onLine != nil {
				e.onLine(line)
			}
		}
		if scanErr := scanner.Err(); scanErr != nil {
			e.logger.Warn("worker output read failed",
				logging.String(logging.FieldTaskID, run.ID),
				logging.Error(scanErr),
			)
		}

		waitErr := cmd.Wait()
		switch {
		case waitErr == nil:
			e.finish(ctx, run, Result{Success: true, ExitCode: 0})
		default:
			var exitErr *exec.ExitError
			if errors.As(waitErr, &exitErr) {
				e.finish(ctx, run, Result{
					Success:  false,
					ExitCode: exitErr.ExitCode(),
					Err:      fmt.Errorf("worker exited abnormally: %w", waitErr),
				})
			} else {
				e.finish(ctx, run, Result{Success: false, Err: fmt.Errorf("await worker: %w", waitErr)})
			}
		}
	}()

	return run, nil
}

// Active returns the in-flight run, or nil.
func (e *Executor) Active() *Run {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Last returns the most recently started run, resolved or not, or nil.
func (e *Executor) Last() *Run {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// finish resolves the run exactly once and releases the single-flight slot.
// Extra invocations for the same run are ignored by the run itself.
func (e *Executor) finish(ctx context.Context, run *Run, result Result) {
	if !run.resolve(result) {
		return
	}
	e.mu.Lock()
	if e.active == run {
		e.active = nil
	}
	e.mu.Unlock()

	if result.Success {
		e.logger.Info("task run succeeded",
			logging.String(logging.FieldTaskID, run.ID),
			logging.Int("exit_code", result.ExitCode),
			logging.Int64("lines", run.Lines()),
		)
	} else {
		e.logger.Warn("task run failed",
			logging.String(logging.FieldTaskID, run.ID),
			logging.Int("exit_code", result.ExitCode),
			logging.Error(result.Err),
			logging.String(logging.FieldEventType, "task_failed"),
		)
	}
	e.recordFinished(ctx, run, result)
}

func (e *Executor) recordStarted(ctx context.Context, run *Run) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.TaskStarted(ctx, run.ID, run.StartedAt); err != nil {
		e.logger.Warn("record task start failed", logging.Error(err))
	}
}

func (e *Executor) recordFinished(ctx context.Context, run *Run, result Result) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.TaskFinished(ctx, run.ID, result, int(run.Lines()), time.Now().UTC()); err != nil {
		e.logger.Warn("record task finish failed", logging.Error(err))
	}
}

func newRun() *Run {
	return &Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		done:      make(chan struct{}),
	}
}
