package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLifecycle(); err != nil {
		return err
	}
	if err := c.validateSupervisor(); err != nil {
		return err
	}
	if err := c.validateTask(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateLifecycle() error {
	if c.Lifecycle.RecreateDelayMS < 0 {
		return errors.New("lifecycle.recreate_delay_ms must not be negative")
	}
	if c.Lifecycle.RelaunchDelayMS < 1000 {
		return errors.New("lifecycle.relaunch_delay_ms must be at least 1000")
	}
	return nil
}

func (c *Config) validateSupervisor() error {
	if c.Supervisor.Enabled && c.Supervisor.InstallCommand == "" {
		return errors.New("supervisor.install_command must be set when supervisor.enabled is true")
	}
	if c.Supervisor.RestartDelaySeconds < 1 {
		return errors.New("supervisor.restart_delay_seconds must be at least 1")
	}
	return nil
}

func (c *Config) validateTask() error {
	if c.Task.PrimeLimit < 2 {
		return errors.New("task.prime_limit must be at least 2")
	}
	if c.Task.ProgressEvery < 1 {
		return errors.New("task.progress_every must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
