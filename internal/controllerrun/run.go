package controllerrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"limpet/internal/config"
	"limpet/internal/controller"
	"limpet/internal/coordination"
	"limpet/internal/instance"
	"limpet/internal/ipc"
	"limpet/internal/lifecycle"
	"limpet/internal/logging"
	"limpet/internal/supervisor"
	"limpet/internal/task"
	"limpet/internal/taskstore"
	"limpet/internal/tui"
)

const (
	// lockHandoffWindow bounds how long a supervised launch contests the
	// instance lock before conceding to another live primary.
	lockHandoffWindow = 5 * time.Second
	lockHandoffPoll   = 100 * time.Millisecond
)

// Options configures daemon process runtime behavior.
type Options struct {
	// SocketPath overrides the config-derived IPC socket location.
	SocketPath string
	// Headless forces the non-interactive surface even on a terminal.
	Headless bool
	// Getenv defaults to os.Getenv; overridable for tests.
	Getenv func(string) string
}

// Run starts the limpet daemon runtime loop and returns the process exit
// code. The code is computed once, at final teardown, from the recorded quit
// intent.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) (exitCode int) {
	if cfg == nil {
		fmt.Fprintln(os.Stderr, "config is required")
		return lifecycle.ExitCodeAbnormal
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "prepare directories: %v\n", err)
		return lifecycle.ExitCodeAbnormal
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		return lifecycle.ExitCodeAbnormal
	}

	socketPath := opts.SocketPath
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}

	// Probe before arbitration and before Start rewrites the marker: the
	// previous run's marker is the only evidence of an abnormal exit, and
	// the supervised flag decides how patiently the lock is contested.
	marker := coordination.NewMarkerStore(cfg.MarkerPath())
	startup := coordination.ProbeStartup(opts.Getenv, marker)

	arbiter := instance.NewArbiter(cfg.LockPath(), socketPath, logger)
	var role instance.Role
	if startup.Supervised {
		// A supervised launch may be racing its dying predecessor for the
		// lock; wait for the OS to release it instead of deferring to a
		// process that is already on its way out.
		role, err = arbiter.AcquireWithin(cmdCtx, lockHandoffWindow, lockHandoffPoll)
	} else {
		role, err = arbiter.Acquire()
	}
	if err != nil {
		logger.Error("instance arbitration failed", logging.Error(err))
		return lifecycle.ExitCodeAbnormal
	}
	if role == instance.RoleSecondary {
		// A primary is already running. Hand it our activation and leave
		// without touching the marker or the supervisor registration.
		if err := arbiter.ForwardActivation(); err != nil {
			logger.Warn("activation forwarding failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the primary may still be starting; retry shortly"),
			)
		}
		return lifecycle.ExitCodeClean
	}
	defer func() {
		if err := arbiter.Release(); err != nil {
			logger.Warn("release instance lock failed", logging.Error(err))
		}
	}()

	if err := writePIDFile(cfg.PIDPath()); err != nil {
		logger.Warn("write pid file failed", logging.Error(err))
	} else {
		defer os.Remove(cfg.PIDPath())
	}

	logger.Info("startup probe",
		logging.Bool("supervised", startup.Supervised),
		logging.Bool("marker_found", startup.MarkerFound),
		logging.Bool("show_surface", startup.ShowSurfaceAtStart()),
	)

	store, err := taskstore.Open(cfg.TaskDBPath())
	if err != nil {
		logger.Error("open task store", logging.Error(err))
		return lifecycle.ExitCodeAbnormal
	}
	defer store.Close()

	bridge := &surfaceBridge{}
	var surface lifecycle.Surface
	var sendLine func(string)
	if !opts.Headless && tui.Interactive() {
		s := tui.NewSurface(bridge, bridge, logger)
		surface = s
		sendLine = s.SendLine
	} else {
		s := tui.NewLogSurface(logger)
		surface = s
		sendLine = s.SendLine
	}

	exe, err := os.Executable()
	if err != nil {
		logger.Error("resolve executable", logging.Error(err))
		return lifecycle.ExitCodeAbnormal
	}
	executor, err := task.NewExecutor(task.Options{
		Binary: exe,
		Args: []string{
			"worker",
			"--limit", strconv.Itoa(cfg.Task.PrimeLimit),
			"--progress-every", strconv.Itoa(cfg.Task.ProgressEvery),
		},
		OnLine:   func(line string) { sendLine(line) },
		Recorder: store,
		OnFault:  func(recovered any) { bridge.Fault(recovered) },
	}, logger)
	if err != nil {
		logger.Error("create task executor", logging.Error(err))
		return lifecycle.ExitCodeAbnormal
	}

	ctrl, err := controller.New(controller.Options{
		Cfg:        cfg,
		Startup:    startup,
		Surface:    surface,
		Executor:   executor,
		Installer:  supervisor.FromConfig(cfg, logger),
		Marker:     marker,
		Logger:     logger,
		Relauncher: controller.NewExecRelauncher(),
	})
	if err != nil {
		logger.Error("create controller", logging.Error(err))
		return lifecycle.ExitCodeAbnormal
	}
	bridge.set(ctrl)

	// A fault anywhere below turns into the relaunch-and-abnormal-exit path
	// instead of an unwound stack.
	defer func() {
		if r := recover(); r != nil {
			ctrl.HandleFault(r)
			exitCode = ctrl.Shutdown()
		}
	}()

	// The server outlives cmdCtx cancellation: a canceled context is routed
	// through the veto policy like any quit signal, and a vetoed daemon
	// still answers IPC.
	serverCtx, stopServer := context.WithCancel(context.Background())
	defer stopServer()
	ipcServer, err := ipc.NewServer(serverCtx, socketPath, ctrl, store, logger)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		return lifecycle.ExitCodeAbnormal
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := ctrl.Start(serverCtx); err != nil {
		logger.Error("controller start failed", logging.Error(err))
		return lifecycle.ExitCodeAbnormal
	}

	quitSignals := make(chan os.Signal, 4)
	signal.Notify(quitSignals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quitSignals)

	showSignals := make(chan os.Signal, 1)
	signal.Notify(showSignals, unix.SIGUSR1)
	defer signal.Stop(showSignals)

	ctxDone := cmdCtx.Done()
	for {
		select {
		case <-quitSignals:
			// Routed through the veto policy: while a surface is up the
			// signal hides it instead of exiting.
			ctrl.HandleQuitSignal()
		case <-showSignals:
			if err := ctrl.Show(); err != nil {
				logger.Warn("show on signal failed", logging.Error(err))
			}
		case <-ctxDone:
			ctxDone = nil
			ctrl.HandleQuitSignal()
		case <-ctrl.Done():
			exitCode = ctrl.Shutdown()
			return exitCode
		}
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

// surfaceBridge adapts the controller for the TUI, which is constructed
// first. The pointer is set before the controller starts, so the surface
// never observes a nil controller.
type surfaceBridge struct {
	ctrl *controller.Controller
}

func (b *surfaceBridge) set(ctrl *controller.Controller) { b.ctrl = ctrl }

func (b *surfaceBridge) Status() controller.Status { return b.ctrl.Status() }

func (b *surfaceBridge) StartTask(ctx context.Context) (*task.Run, error) {
	return b.ctrl.StartTask(ctx)
}

func (b *surfaceBridge) CloseGesture() { b.ctrl.HandleCloseGesture() }

func (b *surfaceBridge) ConfirmExit() { b.ctrl.Quit() }

func (b *surfaceBridge) Fault(recovered any) { b.ctrl.HandleFault(recovered) }
