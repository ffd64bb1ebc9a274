package host

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/artifact-updater/internal/logger"
)

const (
	// MarkerFilename marks that an update of the working root is in progress.
	MarkerFilename = "update-marker.pid"

	markerDirMode  os.FileMode = 0o755
	markerFileMode os.FileMode = 0o600
)

// ErrAlreadyRunning is returned by Marker.Acquire when a live process holds the marker.
var ErrAlreadyRunning = errors.New("another updater is already running")

// DetectDisplayName returns the executable name of the current process
// without its extension, or fallback when the process table cannot tell.
func DetectDisplayName(fallback string) string {
	process, err := ps.FindProcess(os.Getpid())
	if err != nil || process == nil {
		return fallback
	}

	name := strings.TrimSuffix(process.Executable(), filepath.Ext(process.Executable()))
	if name == "" {
		return fallback
	}

	return name
}

// IsProcessRunning reports whether the process table lists pid.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := ps.FindProcess(pid)

	return err == nil && process != nil
}

// Marker is a pid file guarding a working root against concurrent updaters.
type Marker struct {
	// path is the marker file location.
	path string
	// pid is written into the marker on Acquire.
	pid int
}

// NewMarker creates a marker stored at path for the current process.
func NewMarker(path string) *Marker {
	return &Marker{
		path: filepath.Clean(path),
		pid:  os.Getpid(),
	}
}

// Path returns the marker file location.
func (m *Marker) Path() string {
	return m.path
}

// Acquire writes the marker. A marker left by a process that is no longer
// running is replaced.
func (m *Marker) Acquire(ctx context.Context) error {
	logger.Debug(ctx, "Checking for the presence of an update marker")

	owner, err := m.owner()

	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		logger.WarnKV(ctx, "Unreadable update marker, replacing it", "path", m.path, "error", err)

		if err = os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	case owner != m.pid && IsProcessRunning(owner):
		return fmt.Errorf("pid %d: %w", owner, ErrAlreadyRunning)
	default:
		logger.InfoKV(ctx, "The update marker is stale, attempting cleanup", "pid", owner)

		if err = os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	if err = os.MkdirAll(filepath.Dir(m.path), markerDirMode); err != nil {
		return err
	}

	file, err := os.OpenFile(m.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, markerFileMode)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrAlreadyRunning
		}

		return err
	}

	if _, err = file.WriteString(strconv.Itoa(m.pid)); err != nil {
		_ = file.Close()
		return err
	}

	return file.Close()
}

// Release removes the marker if the current process owns it.
func (m *Marker) Release() error {
	owner, err := m.owner()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return err
	}

	if owner != m.pid {
		return nil
	}

	return os.Remove(m.path)
}

// owner reads the pid stored in the marker.
func (m *Marker) owner() (int, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse marker: %w", err)
	}

	return pid, nil
}
