package coordination

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MarkerStore manages the liveness/restart marker: a single timestamp token
// on the filesystem. It is advisory with no transactional guarantee beyond
// "exists or does not"; every read failure is treated as marker absent so
// concurrent removal between stat and read stays harmless.
type MarkerStore struct {
	path string
}

// NewMarkerStore returns a store for the marker at path.
func NewMarkerStore(path string) *MarkerStore {
	return &MarkerStore{path: path}
}

// Path returns the marker file path.
func (s *MarkerStore) Path() string {
	return s.path
}

// Write records the given time as the marker value.
func (s *MarkerStore) Write(now time.Time) error {
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create marker directory: %w", err)
		}
	}
	value := now.UTC().Format(time.RFC3339Nano) + "\n"
	if err := os.WriteFile(s.path, []byte(value), 0o644); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}
	return nil
}

// Read returns the marker timestamp and whether the marker was present. A
// missing, empty, or unparseable marker reads as absent.
func (s *MarkerStore) Read() (time.Time, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return time.Time{}, false
	}
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return time.Time{}, false
	}
	stamp, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return stamp, true
}

// Clear removes the marker. A marker that is already gone is not an error.
func (s *MarkerStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove marker: %w", err)
	}
	return nil
}
