package tui

import (
	"context"
	"log/slog"
	"sync/atomic"

	"limpet/internal/logging"
)

// LogSurface stands in for the terminal surface when stdout is not a
// terminal. Lifecycle transitions are logged so operators can still follow
// show and hide decisions in a non-interactive deployment.
type LogSurface struct {
	logger  *slog.Logger
	visible atomic.Bool
}

// NewLogSurface builds the non-interactive surface.
func NewLogSurface(logger *slog.Logger) *LogSurface {
	return &LogSurface{logger: logging.NewComponentLogger(logger, "surface")}
}

func (s *LogSurface) Show(context.Context) error {
	s.visible.Store(true)
	s.logger.Info("surface shown (non-interactive)")
	return nil
}

func (s *LogSurface) Hide() error {
	s.visible.Store(false)
	s.logger.Info("surface hidden (non-interactive)")
	return nil
}

func (s *LogSurface) Destroy() error {
	s.visible.Store(false)
	s.logger.Debug("surface destroyed (non-interactive)")
	return nil
}

// SendLine logs worker output at debug level.
func (s *LogSurface) SendLine(line string) {
	s.logger.Debug("worker output", logging.String("line", line))
}
