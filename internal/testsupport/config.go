package testsupport

import (
	"path/filepath"
	"testing"

	"limpet/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Lifecycle.RecreateDelayMS = 50
	cfg.Logging.Level = "error"

	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithRecreateDelayMS overrides the surface re-creation delay.
func WithRecreateDelayMS(ms int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Lifecycle.RecreateDelayMS = ms
	}
}

// WithSupervisorHook enables the supervisor installer with the given command
// template.
func WithSupervisorHook(command string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Supervisor.Enabled = true
		cfg.Supervisor.InstallCommand = command
	}
}
