package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"limpet/internal/config"
	"limpet/internal/logging"
)

// Installer registers the platform mechanism that relaunches the executable
// after an abnormal exit. The mechanism itself is opaque: a scheduled task,
// a service-manager unit, a launch agent. Install is idempotent and
// best-effort; a failed install degrades to "no automatic relaunch".
type Installer interface {
	Install(ctx context.Context, executablePath string) error
}

// Disabled is an Installer that does nothing.
type Disabled struct{}

func (Disabled) Install(context.Context, string) error { return nil }

// CommandInstaller shells out to a configured platform hook. The template
// placeholders {exe} and {delay} are replaced with the executable path and
// the relaunch throttle in seconds.
type CommandInstaller struct {
	template     string
	restartDelay int
	logger       *slog.Logger
}

// FromConfig builds the installer the configuration asks for.
func FromConfig(cfg *config.Config, logger *slog.Logger) Installer {
	if cfg == nil || !cfg.Supervisor.Enabled {
		return Disabled{}
	}
	return &CommandInstaller{
		template:     cfg.Supervisor.InstallCommand,
		restartDelay: cfg.Supervisor.RestartDelaySeconds,
		logger:       logging.NewComponentLogger(logger, "supervisor"),
	}
}

// Install runs the hook command once. Output is captured into the returned
// error so the caller can log it; the caller decides that failure is
// non-fatal.
func (c *CommandInstaller) Install(ctx context.Context, executablePath string) error {
	if strings.TrimSpace(executablePath) == "" {
		return errors.New("executable path is empty")
	}

	expanded := strings.ReplaceAll(c.template, "{exe}", executablePath)
	expanded = strings.ReplaceAll(expanded, "{delay}", strconv.Itoa(c.restartDelay))
	parts := strings.Fields(expanded)
	if len(parts) == 0 {
		return errors.New("install command is empty")
	}

	c.logger.Debug("running supervisor install hook", logging.String("command", expanded))
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("install hook %q: %w (output: %s)", parts[0], err, strings.TrimSpace(string(output)))
	}
	c.logger.Info("supervisor mechanism installed",
		logging.String("executable", executablePath),
		logging.Int("restart_delay_seconds", c.restartDelay),
	)
	return nil
}
