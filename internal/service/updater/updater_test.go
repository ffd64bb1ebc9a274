package updater

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/artifact-updater/internal/domain/release"
	"github.com/oshokin/artifact-updater/internal/host"
	"github.com/oshokin/artifact-updater/internal/repository/state"
	"github.com/oshokin/artifact-updater/internal/service/decision"
	"github.com/oshokin/artifact-updater/internal/service/installer"
)

// fakeSource returns fixed entries and counts Fetch calls.
type fakeSource struct {
	mu      sync.Mutex
	entries []release.Entry
	calls   int
}

// Fetch returns the configured entries.
func (s *fakeSource) Fetch(context.Context, int) ([]release.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++

	return s.entries, nil
}

func (s *fakeSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

// fakeInstaller records installs and returns a fixed result.
type fakeInstaller struct {
	mu        sync.Mutex
	result    release.InstallResult
	installed []release.Entry
	paths     []string
	backupErr error
	// started, when set, is closed as Install begins.
	started chan struct{}
	// proceed, when set, holds Install until it is closed.
	proceed chan struct{}
}

// EnsureBackupDir returns the configured error.
func (i *fakeInstaller) EnsureBackupDir() error {
	return i.backupErr
}

// Install records the call, optionally waiting for proceed first.
func (i *fakeInstaller) Install(_ context.Context, entry release.Entry, artifactPath string) release.InstallResult {
	if i.started != nil {
		close(i.started)
	}

	if i.proceed != nil {
		<-i.proceed
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.installed = append(i.installed, entry)
	i.paths = append(i.paths, artifactPath)

	return i.result
}

// Rollback returns a fixed backup.
func (i *fakeInstaller) Rollback(_ context.Context, artifactPath string) (*installer.Backup, error) {
	return &installer.Backup{Path: artifactPath + ".bak"}, nil
}

func (i *fakeInstaller) Installs() int {
	i.mu.Lock()
	defer i.mu.Unlock()

	return len(i.installed)
}

func widgetEntry(name string) release.Entry {
	return release.Entry{
		Name:        name,
		Channel:     release.ChannelRelease,
		DownloadURL: "http://files/widget.jar",
		FileName:    "widget.jar",
		ContentHash: "5eb63bbbe01eeed093cb22bb8f5acdc3",
	}
}

// harness wires an Updater to fakes and a loop.
type harness struct {
	updater   *Updater
	source    *fakeSource
	installer *fakeInstaller
	loop      *host.Loop
}

func newHarness(t *testing.T, installed string, entries []release.Entry, opts ...Option) *harness {
	t.Helper()

	h := &harness{
		source:    &fakeSource{entries: entries},
		installer: &fakeInstaller{result: release.InstallSucceeded},
		loop:      host.NewLoop(),
	}

	t.Cleanup(h.loop.Stop)

	h.updater = New(
		host.NewStatic("widget", installed, "/srv/plugins/widget.jar"),
		h.loop,
		decision.NewEngine(h.source),
		h.installer,
		opts...,
	)

	return h
}

// update runs Update and drains the loop, returning every delivered result.
func (h *harness) update(t *testing.T) []release.InstallResult {
	t.Helper()

	var delivered []release.InstallResult

	h.updater.RegisterCallback(func(result release.InstallResult, u *Updater) {
		require.Same(t, h.updater, u)

		delivered = append(delivered, result)
	})

	require.NoError(t, h.updater.Update(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, h.loop.Drain(ctx))

	return delivered
}

// TestUpdater_ProjectIDUnset rejects checks and updates before a project id is set.
func TestUpdater_ProjectIDUnset(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "0.0.1", nil)

	require.Equal(t, -1, h.updater.ProjectID())

	_, err := h.updater.CheckForUpdates(context.Background(), true)
	require.ErrorIs(t, err, ErrProjectIDUnset)
	require.ErrorIs(t, h.updater.Update(context.Background()), ErrProjectIDUnset)
	require.Zero(t, h.loop.Pending())
	require.Zero(t, h.source.Calls())

	h.updater.SetProjectID(0)
	require.Equal(t, -1, h.updater.ProjectID())

	h.updater.SetProjectID(42)
	require.Equal(t, 42, h.updater.ProjectID())
}

// TestUpdater_CheckCaches reuses the cached verdict until forced.
func TestUpdater_CheckCaches(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "0.0.1", []release.Entry{widgetEntry("Widget v1.0.0")}, WithProjectID(42))

	require.Equal(t, StateIdle, h.updater.State())
	require.Nil(t, h.updater.LastCheck())

	first, err := h.updater.CheckForUpdates(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, release.CheckUpdateAvailable, first.Status)
	require.Equal(t, StateUpdateReady, h.updater.State())

	second, err := h.updater.CheckForUpdates(context.Background(), false)
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, 1, h.source.Calls())

	third, err := h.updater.CheckForUpdates(context.Background(), true)
	require.NoError(t, err)
	require.NotSame(t, first, third)
	require.Equal(t, 2, h.source.Calls())
	require.Same(t, third, h.updater.LastCheck())
}

// TestUpdater_UpdateInstalls installs an available release and notifies once.
func TestUpdater_UpdateInstalls(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "0.0.1", []release.Entry{widgetEntry("Widget v1.0.0")}, WithProjectID(42))

	require.Equal(t, release.InstallNotAttempted, h.updater.IsUpdated())

	delivered := h.update(t)

	require.Equal(t, []release.InstallResult{release.InstallSucceeded}, delivered)
	require.Equal(t, release.InstallSucceeded, h.updater.IsUpdated())
	require.Equal(t, StateInstalled, h.updater.State())
	require.Equal(t, 1, h.installer.Installs())
	require.Equal(t, "Widget v1.0.0", h.installer.installed[0].Name)
	require.Equal(t, "/srv/plugins/widget.jar", h.installer.paths[0])
}

// TestUpdater_UpdateNothingToInstall still notifies, with NotAttempted.
func TestUpdater_UpdateNothingToInstall(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "2.0.0", []release.Entry{widgetEntry("Widget v1.0.0")}, WithProjectID(42))

	delivered := h.update(t)

	require.Equal(t, []release.InstallResult{release.InstallNotAttempted}, delivered)
	require.Equal(t, StateUpToDate, h.updater.State())
	require.Zero(t, h.installer.Installs())
}

// TestUpdater_UpdateFailure reports the install failure to callbacks.
func TestUpdater_UpdateFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "0.0.1", []release.Entry{widgetEntry("Widget v1.0.0")}, WithProjectID(42))
	h.installer.result = release.InstallIOFailure

	delivered := h.update(t)

	require.Equal(t, []release.InstallResult{release.InstallIOFailure}, delivered)
	require.Equal(t, StateFailed, h.updater.State())
}

// TestUpdater_BackupDirFailure does not install when the backup directory is unusable.
func TestUpdater_BackupDirFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "0.0.1", []release.Entry{widgetEntry("Widget v1.0.0")}, WithProjectID(42))
	h.installer.backupErr = os.ErrPermission

	delivered := h.update(t)

	require.Equal(t, []release.InstallResult{release.InstallIOFailure}, delivered)
	require.Zero(t, h.installer.Installs())
}

// TestUpdater_CheckFailure notifies NotAttempted when the feed names are unusable.
func TestUpdater_CheckFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "0.0.1", []release.Entry{widgetEntry("Widget final")}, WithProjectID(42))

	delivered := h.update(t)

	require.Equal(t, []release.InstallResult{release.InstallNotAttempted}, delivered)
	require.Equal(t, StateCheckFailed, h.updater.State())
	require.Equal(t, release.CheckNameUnparseable, h.updater.LastCheck().Status)
}

// TestUpdater_CallbackRegisteredDuringInstall notifies a callback added while the install runs.
func TestUpdater_CallbackRegisteredDuringInstall(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "0.0.1", []release.Entry{widgetEntry("Widget v1.0.0")}, WithProjectID(42))
	h.installer.started = make(chan struct{})
	h.installer.proceed = make(chan struct{})

	require.NoError(t, h.updater.Update(context.Background()))

	select {
	case <-h.installer.started:
	case <-time.After(5 * time.Second):
		t.Fatal("install did not start")
	}

	var late []release.InstallResult

	h.updater.RegisterCallback(func(result release.InstallResult, _ *Updater) {
		late = append(late, result)
	})

	close(h.installer.proceed)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, h.loop.Drain(ctx))
	require.Equal(t, []release.InstallResult{release.InstallSucceeded}, late)
}

// TestUpdater_UpdateAfterStop reports that the update could not be queued.
func TestUpdater_UpdateAfterStop(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "0.0.1", []release.Entry{widgetEntry("Widget v1.0.0")}, WithProjectID(42))
	h.loop.Stop()

	require.ErrorIs(t, h.updater.Update(context.Background()), host.ErrLoopStopped)
	require.Zero(t, h.source.Calls())
	require.Zero(t, h.installer.Installs())
	require.Equal(t, release.InstallNotAttempted, h.updater.IsUpdated())
}

// TestUpdater_CallbacksFromOptions notifies construction-time callbacks in order.
func TestUpdater_CallbacksFromOptions(t *testing.T) {
	t.Parallel()

	var order []string

	h := newHarness(t, "0.0.1", []release.Entry{widgetEntry("Widget v1.0.0")},
		WithProjectID(42),
		WithCallbacks(
			func(release.InstallResult, *Updater) { order = append(order, "first") },
			func(release.InstallResult, *Updater) { order = append(order, "second") },
		),
	)

	h.updater.RegisterCallback(nil)
	h.update(t)

	require.Equal(t, []string{"first", "second"}, order)
}

// TestUpdater_PolicyAndSkipTags applies channel and tag filters to later checks.
func TestUpdater_PolicyAndSkipTags(t *testing.T) {
	t.Parallel()

	beta := widgetEntry("Widget v3.0.0")
	beta.Channel = release.ChannelBeta

	h := newHarness(t, "1.0.0", []release.Entry{
		widgetEntry("Widget v2.0.0"),
		widgetEntry("Widget v2.5.0-nightly"),
		beta,
	}, WithProjectID(42), WithChannels(release.ChannelRelease))

	rejected := h.updater.SetSkipTags(context.Background(), "-nightly", "nightly")
	require.Equal(t, []string{"nightly"}, rejected)

	result, err := h.updater.CheckForUpdates(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, "Widget v2.0.0", result.Release.Name)

	h.updater.SetChannels(release.AllChannels()...)

	result, err = h.updater.CheckForUpdates(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, "Widget v3.0.0", result.Release.Name)
}

// TestUpdater_Persists writes the last check and install to the repository.
func TestUpdater_Persists(t *testing.T) {
	t.Parallel()

	repo := state.NewFileRepository(filepath.Join(t.TempDir(), state.DefaultFilename))
	fixed := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	h := newHarness(t, "0.0.1", []release.Entry{widgetEntry("Widget v1.0.0")},
		WithProjectID(42),
		WithRepository(repo),
		WithClock(func() time.Time { return fixed }),
	)

	h.update(t)

	snapshot, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 42, snapshot.ProjectID)
	require.Equal(t, "0.0.1", snapshot.InstalledVersion)
	require.Equal(t, release.CheckUpdateAvailable, snapshot.Check.Status)
	require.Equal(t, release.InstallSucceeded, snapshot.Install)
	require.True(t, fixed.Equal(snapshot.InstalledAt))

	live := h.updater.Snapshot()
	require.Equal(t, snapshot.Install, live.Install)
}

// TestUpdater_FileHashAndRollback delegates to the checksum and installer.
func TestUpdater_FileHashAndRollback(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "0.0.1", nil)

	path := filepath.Join(t.TempDir(), "widget.jar")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o600))

	digest, err := h.updater.FileHash(path)
	require.NoError(t, err)
	require.Equal(t, "5eb63bbbe01eeed093cb22bb8f5acdc3", digest)

	backup, err := h.updater.Rollback(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/srv/plugins/widget.jar.bak", backup.Path)
}

// TestState_String names every state.
func TestState_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "update-ready", StateUpdateReady.String())
	require.Equal(t, "check-failed", StateCheckFailed.String())
	require.Equal(t, "unknown", State(99).String())
}
