package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"limpet/internal/controller"
	"limpet/internal/task"
)

// exitReason records which gesture ended the program. The surface reports it
// to the controller after the program has fully stopped, so gesture handling
// never re-enters the lifecycle machine from inside the event loop.
type exitReason int

const (
	exitNone exitReason = iota
	exitCloseGesture
	exitConfirm
)

type tickMsg time.Time

type taskStartedMsg struct {
	runID string
	err   error
}

type taskLineMsg string

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(14)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 2)
)

// model renders the controller snapshot and relays task gestures.
type model struct {
	controller Controller
	reason     exitReason
	status     controller.Status
	lastLine   string
	notice     string
	width      int
}

func newModel(ctrl Controller) model {
	return model{
		controller: ctrl,
		status:     ctrl.Status(),
	}
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) startTaskCmd() tea.Cmd {
	ctrl := m.controller
	return func() tea.Msg {
		run, err := ctrl.StartTask(context.Background())
		if err != nil {
			return taskStartedMsg{err: err}
		}
		return taskStartedMsg{runID: run.ID}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tickMsg:
		m.status = m.controller.Status()
		return m, tickCmd()
	case taskStartedMsg:
		if msg.err != nil {
			m.notice = msg.err.Error()
		} else {
			m.notice = "task started: " + msg.runID
		}
		m.status = m.controller.Status()
		return m, nil
	case taskLineMsg:
		m.lastLine = string(msg)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.reason = exitCloseGesture
			return m, tea.Quit
		case "Q":
			m.reason = exitConfirm
			return m, tea.Quit
		case "t":
			return m, m.startTaskCmd()
		}
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("limpet"))
	b.WriteString("\n\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}
	row("pid", fmt.Sprintf("%d", m.status.PID))
	row("surface", m.status.SurfaceState)
	row("supervised", fmt.Sprintf("%t", m.status.Supervised))
	row("task", m.taskLine())
	if m.lastLine != "" {
		row("output", m.lastLine)
	}
	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(valueStyle.Render(m.notice))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("t start task · q hide · Q quit"))
	return borderStyle.Render(b.String())
}

func (m model) taskLine() string {
	if m.status.TaskActive {
		last := m.status.LastTask
		if last != nil {
			return fmt.Sprintf("running (%d lines)", last.Lines)
		}
		return "running"
	}
	last := m.status.LastTask
	if last == nil {
		return "idle"
	}
	if !last.Resolved {
		return "resolving"
	}
	if last.Success {
		return okStyle.Render("succeeded") + fmt.Sprintf(" (%d lines)", last.Lines)
	}
	if errors := last.Error; errors != "" {
		return failStyle.Render("failed") + " " + errors
	}
	return failStyle.Render(fmt.Sprintf("failed (exit %d)", last.ExitCode))
}

// Controller is the slice of controller behavior the surface needs.
type Controller interface {
	Status() controller.Status
	StartTask(ctx context.Context) (*task.Run, error)
}
