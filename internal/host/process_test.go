package host

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

// unusedPid is far above the default pid_max and never names a live process.
const unusedPid = 1 << 30

// TestMarker_AcquireRelease writes the current pid and removes it again.
func TestMarker_AcquireRelease(t *testing.T) {
	t.Parallel()

	marker := NewMarker(filepath.Join(t.TempDir(), "root", MarkerFilename))

	require.NoError(t, marker.Acquire(context.Background()))

	data, err := os.ReadFile(marker.Path())
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	require.NoError(t, marker.Release())
	require.NoFileExists(t, marker.Path())
	require.NoError(t, marker.Release())
}

// TestMarker_LiveOwner refuses a marker held by another running process.
func TestMarker_LiveOwner(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), MarkerFilename)
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getppid())), 0o600))

	marker := NewMarker(path)
	require.ErrorIs(t, marker.Acquire(context.Background()), ErrAlreadyRunning)

	require.NoError(t, marker.Release())
	require.FileExists(t, path)
}

// TestMarker_StaleOwner replaces markers of dead processes and garbage markers.
func TestMarker_StaleOwner(t *testing.T) {
	t.Parallel()

	for _, content := range []string{strconv.Itoa(unusedPid), "not a pid"} {
		path := filepath.Join(t.TempDir(), MarkerFilename)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		marker := NewMarker(path)
		require.NoError(t, marker.Acquire(context.Background()), content)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, strconv.Itoa(os.Getpid()), string(data))
	}
}

// TestIsProcessRunning finds the current process and rejects impossible pids.
func TestIsProcessRunning(t *testing.T) {
	t.Parallel()

	require.True(t, IsProcessRunning(os.Getpid()))
	require.False(t, IsProcessRunning(0))
	require.False(t, IsProcessRunning(unusedPid))
}

// TestDetectDisplayName returns a non-empty name.
func TestDetectDisplayName(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, DetectDisplayName("fallback"))
}

// TestStatic returns the configured values.
func TestStatic(t *testing.T) {
	t.Parallel()

	var h Host = NewStatic("widget", "1.0.0", "/srv/widget.jar")

	require.Equal(t, "widget", h.Name())
	require.Equal(t, "1.0.0", h.Version())
	require.Equal(t, "/srv/widget.jar", h.ArtifactPath())
}
