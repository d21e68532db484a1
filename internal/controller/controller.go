package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"limpet/internal/config"
	"limpet/internal/coordination"
	"limpet/internal/lifecycle"
	"limpet/internal/logging"
	"limpet/internal/supervisor"
	"limpet/internal/task"
)

// Options wires the controller's collaborators. All state from §startup is
// probed once at process entry and handed in here; the controller never
// re-reads ambient environment mid-run.
type Options struct {
	Cfg       *config.Config
	Startup   coordination.StartupState
	Surface   lifecycle.Surface
	Executor  *task.Executor
	Installer supervisor.Installer
	Marker    *coordination.MarkerStore
	Logger    *slog.Logger
	// Relauncher is used by the fault handler. Nil disables self-relaunch
	// (tests).
	Relauncher Relauncher
}

// Controller orchestrates the single-instance lock holder's lifetime: the
// surface state machine, the liveness marker, the supervisor installer, the
// fault handler, and the final teardown exit code.
type Controller struct {
	cfg        *config.Config
	startup    coordination.StartupState
	logger     *slog.Logger
	intents    *lifecycle.IntentRecorder
	machine    *lifecycle.Machine
	marker     *coordination.MarkerStore
	executor   *task.Executor
	installer  supervisor.Installer
	relauncher Relauncher

	quit      chan struct{}
	quitOnce  sync.Once
	faultOnce sync.Once

	mu      sync.Mutex
	started bool
}

// New constructs a controller. The surface may be nil for headless use.
func New(opts Options) (*Controller, error) {
	if opts.Cfg == nil {
		return nil, errors.New("controller requires config")
	}
	if opts.Executor == nil {
		return nil, errors.New("controller requires a task executor")
	}
	if opts.Marker == nil {
		opts.Marker = coordination.NewMarkerStore(opts.Cfg.MarkerPath())
	}
	if opts.Installer == nil {
		opts.Installer = supervisor.Disabled{}
	}

	c := &Controller{
		cfg:        opts.Cfg,
		startup:    opts.Startup,
		logger:     logging.NewComponentLogger(opts.Logger, "controller"),
		intents:    lifecycle.NewIntentRecorder(),
		marker:     opts.Marker,
		executor:   opts.Executor,
		installer:  opts.Installer,
		relauncher: opts.Relauncher,
		quit:       make(chan struct{}),
	}
	c.machine = lifecycle.NewMachine(opts.Surface, c.intents, opts.Cfg.RecreateDelay(), opts.Logger, c.allowQuit)
	return c, nil
}

// Start writes the liveness marker, installs the supervisor mechanism
// best-effort, and brings up the surface per the startup decision. The
// marker write happens before surface creation so a crash at any later point
// is detectable by the next launch.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("controller already started")
	}
	c.started = true
	c.mu.Unlock()

	if err := c.marker.Write(time.Now()); err != nil {
		return fmt.Errorf("write liveness marker: %w", err)
	}
	c.logger.Info("liveness marker written", logging.String("path", c.marker.Path()))

	c.installSupervisor(ctx)

	visible := c.startup.ShowSurfaceAtStart()
	if c.startup.Supervised && c.startup.MarkerFound {
		c.logger.Info("previous run ended abnormally, showing surface",
			logging.String(logging.FieldEventType, "auto_show_after_crash"),
		)
	}
	if err := c.machine.Start(ctx, visible); err != nil {
		return fmt.Errorf("start lifecycle machine: %w", err)
	}
	return nil
}

func (c *Controller) installSupervisor(ctx context.Context) {
	exe, err := os.Executable()
	if err != nil {
		c.logger.Warn("resolve executable for supervisor install",
			logging.Error(err),
			logging.String(logging.FieldEventType, "supervisor_install_failed"),
			logging.String(logging.FieldImpact, "no automatic relaunch after abnormal exit"),
		)
		return
	}
	if err := c.installer.Install(ctx, exe); err != nil {
		c.logger.Warn("supervisor install failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "supervisor_install_failed"),
			logging.String(logging.FieldErrorHint, "check supervisor.install_command"),
			logging.String(logging.FieldImpact, "no automatic relaunch after abnormal exit"),
		)
	}
}

// Show transitions a headless or hidden surface to visible. Used by the IPC
// show signal, tray-style activation, and secondary-instance forwarding.
func (c *Controller) Show() error {
	return c.machine.RequestShow()
}

// Quit is the sanctioned exit control. It records user-requested intent and
// releases the pending quit.
func (c *Controller) Quit() {
	c.machine.ConfirmExit()
}

// HandleCloseGesture routes a surface close gesture through the veto policy.
func (c *Controller) HandleCloseGesture() {
	if c.machine.HandleCloseRequest() {
		c.allowQuit()
	}
}

// HandleQuitSignal routes a process-level quit signal (SIGTERM/SIGINT)
// through the veto policy. Vetoed signals hide the surface and schedule its
// re-creation.
func (c *Controller) HandleQuitSignal() {
	if c.machine.HandleQuitSignal() {
		c.allowQuit()
	}
}

// SurfaceDestroyed reports host-level surface destruction that was not a
// user gesture.
func (c *Controller) SurfaceDestroyed() {
	c.machine.NotifySurfaceDestroyed()
}

// HandleFault is the uncaught-fault path: record system-requested intent,
// wait out the relaunch throttle, launch a detached replacement process, and
// release the quit so the process exits abnormally. The relaunch happens
// regardless of whether an external supervisor is configured. Faults can
// surface from several goroutines at once; only the first launches a
// replacement.
func (c *Controller) HandleFault(recovered any) {
	c.faultOnce.Do(func() {
		c.intents.Record(lifecycle.IntentSystemRequested)
		c.logger.Error("uncaught fault, scheduling relaunch",
			logging.Any("fault", recovered),
			logging.String(logging.FieldEventType, "uncaught_fault"),
			logging.Duration("relaunch_delay", c.cfg.RelaunchDelay()),
		)

		if c.relauncher != nil {
			time.Sleep(c.cfg.RelaunchDelay())
			if err := c.relauncher.Relaunch(); err != nil {
				c.logger.Error("self-relaunch failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "recovery depends on the external supervisor"),
				)
			}
		}
		c.allowQuit()
	})
}

// Done is closed once a quit is allowed to proceed.
func (c *Controller) Done() <-chan struct{} {
	return c.quit
}

func (c *Controller) allowQuit() {
	c.quitOnce.Do(func() { close(c.quit) })
}

// Shutdown runs final teardown and returns the process exit code. The
// classifier is consulted here and nowhere else: a user-requested signal can
// still arrive up to this point.
func (c *Controller) Shutdown() int {
	c.machine.FinalTeardown()

	intent := c.intents.Current()
	disposition := lifecycle.Classify(intent)
	if disposition == lifecycle.DispositionClean {
		if err := c.marker.Clear(); err != nil {
			c.logger.Warn("clear liveness marker failed", logging.Error(err))
		}
	}
	c.logger.Info("terminating",
		logging.String("intent", intent.String()),
		logging.String("disposition", disposition.String()),
		logging.Int("exit_code", disposition.Code()),
	)
	return disposition.Code()
}

// StartTask launches the background worker. Returns task.ErrTaskActive when
// a run is already in flight.
func (c *Controller) StartTask(ctx context.Context) (*task.Run, error) {
	return c.executor.Start(ctx)
}

// Status reports a point-in-time controller snapshot.
func (c *Controller) Status() Status {
	status := Status{
		Running:      true,
		PID:          os.Getpid(),
		SurfaceState: c.machine.State().String(),
		Intent:       c.intents.Current().String(),
		Supervised:   c.startup.Supervised,
		LockPath:     c.cfg.LockPath(),
		MarkerPath:   c.marker.Path(),
		SocketPath:   c.cfg.SocketPath(),
	}
	if active := c.executor.Active(); active != nil {
		status.TaskActive = true
	}
	if last := c.executor.Last(); last != nil {
		status.LastTask = snapshotRun(last)
	}
	return status
}

// Status is the controller snapshot surfaced over IPC and in the TUI.
type Status struct {
	Running      bool
	PID          int
	SurfaceState string
	Intent       string
	Supervised   bool
	LockPath     string
	MarkerPath   string
	SocketPath   string
	TaskActive   bool
	LastTask     *TaskSnapshot
}

// TaskSnapshot summarizes one task run.
type TaskSnapshot struct {
	ID        string
	StartedAt time.Time
	Resolved  bool
	Success   bool
	ExitCode  int
	Error     string
	Lines     int64
}

func snapshotRun(run *task.Run) *TaskSnapshot {
	snap := &TaskSnapshot{
		ID:        run.ID,
		StartedAt: run.StartedAt,
		Lines:     run.Lines(),
	}
	if run.Resolved() {
		result := run.Result()
		snap.Resolved = true
		snap.Success = result.Success
		snap.ExitCode = result.ExitCode
		if result.Err != nil {
			snap.Error = result.Err.Error()
		}
	}
	return snap
}
