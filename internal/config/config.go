package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Lifecycle contains timing knobs for the window lifecycle machine and the
// self-relaunch fault path.
type Lifecycle struct {
	// RecreateDelayMS is the pause before a vetoed or crashed surface is
	// re-created. Keeps respawn from looping tightly.
	RecreateDelayMS int `toml:"recreate_delay_ms"`
	// RelaunchDelayMS is the minimum pause before the fault handler launches
	// a replacement process.
	RelaunchDelayMS int `toml:"relaunch_delay_ms"`
}

// Supervisor contains configuration for the external relaunch mechanism.
type Supervisor struct {
	Enabled bool `toml:"enabled"`
	// InstallCommand is an opaque platform hook invoked once at startup. The
	// literal {exe} is replaced with the absolute executable path.
	InstallCommand string `toml:"install_command"`
	// RestartDelaySeconds is the throttle the installed mechanism is asked to
	// apply between observed deaths and relaunches.
	RestartDelaySeconds int `toml:"restart_delay_seconds"`
}

// Task contains configuration for the background worker payload.
type Task struct {
	// PrimeLimit bounds the worker's prime count workload.
	PrimeLimit int `toml:"prime_limit"`
	// ProgressEvery controls how many candidates are sieved between progress lines.
	ProgressEvery int `toml:"progress_every"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Limpet.
//
// Configuration sections by subsystem:
//   - Paths: state directory (lock, marker, socket, task db) and log directory
//   - Lifecycle: surface re-creation and self-relaunch delays
//   - Supervisor: external relaunch mechanism install hook
//   - Task: background worker payload sizing
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Lifecycle  Lifecycle  `toml:"lifecycle"`
	Supervisor Supervisor `toml:"supervisor"`
	Task       Task       `toml:"task"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/limpet/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	if c.Lifecycle.RecreateDelayMS == 0 {
		c.Lifecycle.RecreateDelayMS = defaultRecreateDelayMS
	}
	if c.Lifecycle.RelaunchDelayMS == 0 {
		c.Lifecycle.RelaunchDelayMS = defaultRelaunchDelayMS
	}
	if c.Supervisor.RestartDelaySeconds == 0 {
		c.Supervisor.RestartDelaySeconds = defaultSupervisorRestartDelay
	}
	c.Supervisor.InstallCommand = strings.TrimSpace(c.Supervisor.InstallCommand)

	if c.Task.PrimeLimit == 0 {
		c.Task.PrimeLimit = defaultTaskPrimeLimit
	}
	if c.Task.ProgressEvery == 0 {
		c.Task.ProgressEvery = defaultTaskProgressEvery
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		trimmed = filepath.Join(home, trimmed[2:])
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}
	return abs, nil
}

// EnsureDirectories creates required directories for controller operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath returns the single-instance lock file path.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "limpet.lock")
}

// MarkerPath returns the liveness/restart marker file path.
func (c *Config) MarkerPath() string {
	return filepath.Join(c.Paths.StateDir, "limpet.alive")
}

// SocketPath returns the IPC socket path.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "limpet.sock")
}

// PIDPath returns the primary instance pid file path.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "limpet.pid")
}

// TaskDBPath returns the task history database path.
func (c *Config) TaskDBPath() string {
	return filepath.Join(c.Paths.StateDir, "tasks.db")
}

// RecreateDelay returns the surface re-creation delay as a duration.
func (c *Config) RecreateDelay() time.Duration {
	return time.Duration(c.Lifecycle.RecreateDelayMS) * time.Millisecond
}

// RelaunchDelay returns the fault-handler relaunch delay as a duration.
func (c *Config) RelaunchDelay() time.Duration {
	return time.Duration(c.Lifecycle.RelaunchDelayMS) * time.Millisecond
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

// WriteSample writes the sample configuration to path, refusing to overwrite.
func WriteSample(path string) (string, error) {
	expanded, err := expandPath(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(expanded); err == nil {
		return "", fmt.Errorf("config file already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return "", fmt.Errorf("write sample config: %w", err)
	}
	return expanded, nil
}
