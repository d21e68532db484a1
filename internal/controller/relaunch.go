package controller

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"limpet/internal/coordination"
)

// Relauncher starts a detached replacement process during fault recovery.
type Relauncher interface {
	Relaunch() error
}

// ExecRelauncher relaunches the current executable with the original
// arguments, detached from this process, with the supervised flag set so the
// replacement knows a machine decision restarted it.
type ExecRelauncher struct {
	// ExecutablePath overrides os.Executable for tests.
	ExecutablePath string
	// Args are the arguments for the replacement, without the program name.
	Args []string
}

// NewExecRelauncher captures the current invocation for later replay.
func NewExecRelauncher() *ExecRelauncher {
	return &ExecRelauncher{Args: append([]string(nil), os.Args[1:]...)}
}

// Relaunch starts the replacement and releases it so it survives this
// process's exit.
func (r *ExecRelauncher) Relaunch() error {
	exe := r.ExecutablePath
	if exe == "" {
		resolved, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolve executable: %w", err)
		}
		exe = resolved
	}
	if strings.TrimSpace(exe) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	proc := exec.Command(exe, r.Args...)
	proc.Env = append(os.Environ(), coordination.SupervisedEnv+"=1")
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch replacement: %w", err)
	}
	return proc.Process.Release()
}
