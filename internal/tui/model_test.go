package tui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"limpet/internal/controller"
	"limpet/internal/task"
)

type stubController struct {
	status   controller.Status
	startErr error
	started  int
}

func (s *stubController) Status() controller.Status {
	return s.status
}

func (s *stubController) StartTask(context.Context) (*task.Run, error) {
	s.started++
	if s.startErr != nil {
		return nil, s.startErr
	}
	return &task.Run{ID: "run-1"}, nil
}

func keyMsg(s string) tea.KeyMsg {
	if s == "ctrl+c" {
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestCloseKeysQuitWithCloseGestureReason(t *testing.T) {
	for _, key := range []string{"q", "ctrl+c"} {
		m := newModel(&stubController{})
		updated, cmd := m.Update(keyMsg(key))
		if cmd == nil {
			t.Fatalf("%s: expected quit command", key)
		}
		if got := updated.(model).reason; got != exitCloseGesture {
			t.Fatalf("%s: reason = %d", key, got)
		}
	}
}

func TestShiftQQuitsWithConfirmReason(t *testing.T) {
	m := newModel(&stubController{})
	updated, cmd := m.Update(keyMsg("Q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if got := updated.(model).reason; got != exitConfirm {
		t.Fatalf("reason = %d", got)
	}
}

func TestTaskKeyStartsRun(t *testing.T) {
	ctrl := &stubController{}
	m := newModel(ctrl)
	_, cmd := m.Update(keyMsg("t"))
	if cmd == nil {
		t.Fatal("expected start command")
	}

	msg := cmd()
	started, ok := msg.(taskStartedMsg)
	if !ok {
		t.Fatalf("msg = %T", msg)
	}
	if started.err != nil || started.runID != "run-1" {
		t.Fatalf("msg = %+v", started)
	}
	if ctrl.started != 1 {
		t.Fatalf("started = %d", ctrl.started)
	}
}

func TestActiveRunRejectionShowsNotice(t *testing.T) {
	ctrl := &stubController{startErr: task.ErrTaskActive}
	m := newModel(ctrl)
	_, cmd := m.Update(keyMsg("t"))
	msg := cmd()

	updated, _ := m.Update(msg)
	notice := updated.(model).notice
	if notice == "" {
		t.Fatal("expected rejection notice")
	}
}

func TestTaskLineMessageUpdatesOutput(t *testing.T) {
	m := newModel(&stubController{})
	updated, _ := m.Update(taskLineMsg("progress checked=100/1000 primes=25"))
	if got := updated.(model).lastLine; got != "progress checked=100/1000 primes=25" {
		t.Fatalf("lastLine = %q", got)
	}
}
