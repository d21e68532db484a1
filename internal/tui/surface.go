package tui

import (
	"context"
	"log/slog"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"limpet/internal/logging"
)

// Gestures receives surface gestures after the event loop has fully stopped.
// The lifecycle machine's veto policy lives behind these callbacks.
type Gestures interface {
	// CloseGesture is the dismissive close: hide, do not exit.
	CloseGesture()
	// ConfirmExit is the sanctioned exit control.
	ConfirmExit()
	// Fault receives a panic recovered in the surface's event loop
	// goroutine, so it reaches the controller's fault path instead of
	// dying with the goroutine.
	Fault(recovered any)
}

// Surface renders the daemon state in the terminal. It satisfies the
// lifecycle machine's surface contract: Show starts a fresh program, Hide
// and Destroy stop it. Gesture outcomes are delivered to the Gestures sink
// only after the program goroutine has exited.
type Surface struct {
	controller Controller
	gestures   Gestures
	logger     *slog.Logger

	mu      sync.Mutex
	program *tea.Program
	runDone chan struct{}
}

// NewSurface builds a terminal surface over the controller.
func NewSurface(ctrl Controller, gestures Gestures, logger *slog.Logger) *Surface {
	return &Surface{
		controller: ctrl,
		gestures:   gestures,
		logger:     logging.NewComponentLogger(logger, "tui"),
	}
}

// Show starts a new program. Calling Show while a program is already running
// is a no-op; the machine only shows from hidden or headless states.
func (s *Surface) Show(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.program != nil {
		return nil
	}

	program := tea.NewProgram(newModel(s.controller), tea.WithAltScreen(), tea.WithContext(ctx))
	done := make(chan struct{})
	s.program = program
	s.runDone = done

	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				s.mu.Lock()
				if s.program == program {
					s.program = nil
				}
				s.mu.Unlock()
				s.gestures.Fault(r)
			}
		}()
		final, err := program.Run()
		s.mu.Lock()
		if s.program == program {
			s.program = nil
		}
		s.mu.Unlock()

		if err != nil && !isCanceled(ctx, err) {
			s.logger.Warn("surface event loop ended with error", logging.Error(err))
		}

		m, ok := final.(model)
		if !ok {
			return
		}
		switch m.reason {
		case exitCloseGesture:
			s.logger.Debug("close gesture from surface")
			s.gestures.CloseGesture()
		case exitConfirm:
			s.logger.Debug("exit confirmed from surface")
			s.gestures.ConfirmExit()
		}
	}()
	return nil
}

func isCanceled(ctx context.Context, err error) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return err == tea.ErrProgramKilled
	}
}

// Hide stops the program without reporting a gesture. The machine keeps the
// process alive and may show a fresh program later.
func (s *Surface) Hide() error {
	s.stop()
	return nil
}

// Destroy stops the program during final teardown.
func (s *Surface) Destroy() error {
	s.stop()
	return nil
}

func (s *Surface) stop() {
	s.mu.Lock()
	program := s.program
	done := s.runDone
	s.mu.Unlock()
	if program == nil {
		return
	}
	program.Quit()
	if done != nil {
		<-done
	}
}

// SendLine forwards a worker output line into the running program, if any.
func (s *Surface) SendLine(line string) {
	s.mu.Lock()
	program := s.program
	s.mu.Unlock()
	if program != nil {
		program.Send(taskLineMsg(line))
	}
}

// Interactive reports whether stdout is a terminal that can host the
// surface. Non-interactive launches fall back to a headless surface.
func Interactive() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
