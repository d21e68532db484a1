package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"limpet/internal/logging"
)

// Machine owns the surface state and is the only legal way to change it.
// Every transition runs under one mutex, so gestures, signals, and timer
// callbacks never mutate state concurrently.
type Machine struct {
	mu            sync.Mutex
	state         SurfaceState
	surface       Surface
	intents       *IntentRecorder
	recreateDelay time.Duration
	logger        *slog.Logger

	// onExitAllowed fires after the sanctioned exit control records
	// user-requested intent; the controller uses it to begin final teardown.
	onExitAllowed func()

	ctx           context.Context
	recreateTimer *time.Timer
	tearingDown   bool
}

// NewMachine constructs a machine around the given surface. onExitAllowed may
// be nil when no teardown hook is needed (tests).
func NewMachine(surface Surface, intents *IntentRecorder, recreateDelay time.Duration, logger *slog.Logger, onExitAllowed func()) *Machine {
	if surface == nil {
		surface = NopSurface{}
	}
	if intents == nil {
		intents = NewIntentRecorder()
	}
	return &Machine{
		state:         StateUninitialized,
		surface:       surface,
		intents:       intents,
		recreateDelay: recreateDelay,
		logger:        logging.NewComponentLogger(logger, "lifecycle"),
		onExitAllowed: onExitAllowed,
	}
}

// Start performs the initial transition out of StateUninitialized. With
// visible=false the machine stays headless until a show request arrives.
func (m *Machine) Start(ctx context.Context, visible bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateUninitialized {
		return fmt.Errorf("machine already started in state %s", m.state)
	}
	m.ctx = ctx
	if !visible {
		m.state = StateHeadless
		m.logger.Info("starting headless")
		return nil
	}
	return m.showLocked()
}

// State returns the current surface state.
func (m *Machine) State() SurfaceState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// HandleCloseRequest processes a close gesture on the surface. It returns
// true when the quit may proceed (user-requested intent already recorded);
// otherwise the close is vetoed and the surface moves to StateHidden.
func (m *Machine) HandleCloseRequest() bool {
	m.mu.Lock()
	if m.tearingDown || m.intents.Current() == IntentUserRequested {
		m.mu.Unlock()
		return true
	}
	hide := m.markHiddenLocked("close vetoed")
	m.mu.Unlock()
	if hide {
		m.hideSurface()
	}
	return false
}

// HandleQuitSignal processes a process-level quit signal (SIGTERM/SIGINT or a
// quit-all gesture). Vetoed quits hide the surface and schedule re-creation
// after the configured delay so the app comes back without a tight respawn
// loop. Returns true when the quit may proceed.
func (m *Machine) HandleQuitSignal() bool {
	m.mu.Lock()
	if m.tearingDown || m.intents.Current() == IntentUserRequested {
		m.mu.Unlock()
		return true
	}
	hide := m.markHiddenLocked("quit vetoed")
	m.scheduleRecreateLocked()
	m.mu.Unlock()
	if hide {
		m.hideSurface()
	}
	return false
}

// NotifySurfaceDestroyed handles host-level destruction of the surface that
// was not a user gesture. The intent stays unknown and a fresh surface is
// scheduled unless the controller is tearing down.
func (m *Machine) NotifySurfaceDestroyed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tearingDown {
		return
	}
	m.state = StateDestroyed
	m.logger.Warn("surface destroyed unexpectedly",
		logging.String(logging.FieldEventType, "surface_destroyed"),
		logging.Duration("recreate_in", m.recreateDelay),
	)
	m.scheduleRecreateLocked()
}

// ConfirmExit is the sanctioned exit control. It records user-requested
// intent (first decision wins) and notifies the controller that the pending
// quit may proceed.
func (m *Machine) ConfirmExit() {
	effective := m.intents.Record(IntentUserRequested)
	m.logger.Info("exit confirmed",
		logging.String(logging.FieldEventType, "exit_confirmed"),
		logging.String("intent", effective.String()),
	)
	if m.onExitAllowed != nil {
		m.onExitAllowed()
	}
}

// RequestShow transitions a headless or hidden surface to visible. Show
// requests during teardown are ignored.
func (m *Machine) RequestShow() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tearingDown {
		return nil
	}
	if m.state == StateVisible {
		return nil
	}
	return m.showLocked()
}

// FinalTeardown destroys the surface for good. Only the controller calls it,
// after the quit intent has been resolved.
func (m *Machine) FinalTeardown() {
	m.mu.Lock()
	m.tearingDown = true
	if m.recreateTimer != nil {
		m.recreateTimer.Stop()
		m.recreateTimer = nil
	}
	destroy := m.state == StateVisible || m.state == StateHidden
	m.state = StateDestroyed
	m.mu.Unlock()
	if destroy {
		if err := m.surface.Destroy(); err != nil {
			m.logger.Warn("surface destroy failed", logging.Error(err))
		}
	}
}

func (m *Machine) showLocked() error {
	ctx := m.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := m.surface.Show(ctx); err != nil {
		return fmt.Errorf("show surface: %w", err)
	}
	m.state = StateVisible
	m.logger.Debug("surface visible")
	return nil
}

// markHiddenLocked moves the state to Hidden and reports whether a surface
// hide call is owed. The Hide call itself happens after the lock is
// released: Hide may block until the surface's event loop drains, and that
// loop can be delivering a gesture back into the machine at the same
// moment.
func (m *Machine) markHiddenLocked(reason string) bool {
	wasVisible := m.state == StateVisible
	m.state = StateHidden
	m.logger.Info(reason,
		logging.String(logging.FieldEventType, "quit_vetoed"),
		logging.String("state", m.state.String()),
	)
	return wasVisible
}

func (m *Machine) hideSurface() {
	if err := m.surface.Hide(); err != nil {
		m.logger.Warn("surface hide failed", logging.Error(err))
	}
}

func (m *Machine) scheduleRecreateLocked() {
	if m.recreateTimer != nil {
		m.recreateTimer.Stop()
	}
	m.recreateTimer = time.AfterFunc(m.recreateDelay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.tearingDown || m.intents.Current() == IntentUserRequested {
			return
		}
		if m.state == StateVisible {
			return
		}
		if err := m.showLocked(); err != nil {
			m.logger.Error("surface re-creation failed", logging.Error(err))
		}
	})
}
