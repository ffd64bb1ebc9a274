package updater

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/oshokin/artifact-updater/internal/checksum"
	"github.com/oshokin/artifact-updater/internal/domain/release"
	"github.com/oshokin/artifact-updater/internal/host"
	"github.com/oshokin/artifact-updater/internal/logger"
	"github.com/oshokin/artifact-updater/internal/repository/state"
	"github.com/oshokin/artifact-updater/internal/service/decision"
	"github.com/oshokin/artifact-updater/internal/service/installer"
)

// projectIDUnset is the project id before one is configured.
const projectIDUnset = -1

// ErrProjectIDUnset is returned by CheckForUpdates and Update before a project id is set.
var ErrProjectIDUnset = errors.New("project id is not set")

// Callback receives the outcome of an Update on the host's primary context.
type Callback func(result release.InstallResult, u *Updater)

// Decider turns a request into a check verdict.
type Decider interface {
	Decide(ctx context.Context, req *decision.Request) *release.CheckResult
}

// Installer applies a release to the artifact.
type Installer interface {
	EnsureBackupDir() error
	Install(ctx context.Context, entry release.Entry, artifactPath string) release.InstallResult
	Rollback(ctx context.Context, artifactPath string) (*installer.Backup, error)
}

// Updater is the update orchestrator embedded into a host.
type Updater struct {
	// mu guards every mutable field below.
	mu sync.Mutex
	// projectID identifies the artifact on the feed; projectIDUnset until set.
	projectID int
	// policy lists the channels allowed to produce updates.
	policy release.ChannelPolicy
	// skipTags excludes releases by name suffix.
	skipTags release.SkipTags
	// lastCheck is the cached verdict, nil until the first check.
	lastCheck *release.CheckResult
	// checkedAt is when lastCheck was produced.
	checkedAt time.Time
	// lastInstall is the result of the most recent Update.
	lastInstall release.InstallResult
	// installedAt is when lastInstall was produced.
	installedAt time.Time
	// callbacks are notified after every Update.
	callbacks []Callback
	// state is the lifecycle position.
	state State

	decider   Decider
	installer Installer
	scheduler host.Scheduler
	host      host.Host
	repo      state.Repository
	now       func() time.Time
}

// New creates an Updater for the artifact described by h.
func New(
	h host.Host,
	scheduler host.Scheduler,
	decider Decider,
	inst Installer,
	opts ...Option,
) *Updater {
	u := &Updater{
		projectID: projectIDUnset,
		policy:    release.DefaultChannelPolicy(),
		decider:   decider,
		installer: inst,
		scheduler: scheduler,
		host:      h,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(u)
	}

	return u
}

// normalizeProjectID maps every non-positive id to projectIDUnset.
func normalizeProjectID(projectID int) int {
	if projectID <= 0 {
		return projectIDUnset
	}

	return projectID
}

// SetProjectID sets the feed project id. Non-positive values unset it.
func (u *Updater) SetProjectID(projectID int) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.projectID = normalizeProjectID(projectID)
}

// ProjectID returns the feed project id, or -1 when unset.
func (u *Updater) ProjectID() int {
	u.mu.Lock()
	defer u.mu.Unlock()

	return u.projectID
}

// RegisterCallback adds a callback notified after every Update.
func (u *Updater) RegisterCallback(callback Callback) {
	if callback == nil {
		return
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	u.callbacks = append(u.callbacks, callback)
}

// SetChannels replaces the channel policy. It does not invalidate the cached check.
func (u *Updater) SetChannels(channels ...release.Channel) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.policy = release.NewChannelPolicy(channels...)
}

// SetSkipTags replaces the skip tags. Tags without a leading dash are
// ignored with a warning and returned.
func (u *Updater) SetSkipTags(ctx context.Context, tags ...string) []string {
	accepted, rejected := release.NewSkipTags(tags...)

	for _, tag := range rejected {
		logger.WarnKV(ctx, "Ignoring skip tag without a leading dash", "tag", tag)
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	u.skipTags = accepted

	return rejected
}

// State returns the lifecycle position.
func (u *Updater) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()

	return u.state
}

// LastCheck returns the cached check verdict, nil if no check ran.
func (u *Updater) LastCheck() *release.CheckResult {
	u.mu.Lock()
	defer u.mu.Unlock()

	return u.lastCheck
}

// IsUpdated returns the result of the most recent Update.
func (u *Updater) IsUpdated() release.InstallResult {
	u.mu.Lock()
	defer u.mu.Unlock()

	return u.lastInstall
}

// FileHash returns the lowercase hex MD5 digest of the file at path.
func (u *Updater) FileHash(path string) (string, error) {
	return checksum.FileHash(path)
}

// Snapshot returns the current results as a persistable value.
func (u *Updater) Snapshot() release.Snapshot {
	u.mu.Lock()
	defer u.mu.Unlock()

	return u.snapshotLocked()
}

func (u *Updater) snapshotLocked() release.Snapshot {
	return release.Snapshot{
		ProjectID:        u.projectID,
		InstalledVersion: u.host.Version(),
		CheckedAt:        u.checkedAt,
		Check:            u.lastCheck,
		InstalledAt:      u.installedAt,
		Install:          u.lastInstall,
	}
}

// CheckForUpdates returns the cached verdict, or queries the feed when
// force is set or no verdict is cached.
func (u *Updater) CheckForUpdates(ctx context.Context, force bool) (*release.CheckResult, error) {
	return u.check(u.logContext(ctx), force)
}

func (u *Updater) check(ctx context.Context, force bool) (*release.CheckResult, error) {
	u.mu.Lock()

	if u.projectID == projectIDUnset {
		u.mu.Unlock()
		return nil, ErrProjectIDUnset
	}

	req := &decision.Request{
		ProjectID:        u.projectID,
		InstalledVersion: u.host.Version(),
		Policy:           u.policy,
		SkipTags:         u.skipTags,
		Force:            force,
		Cached:           u.lastCheck,
	}

	fresh := force || u.lastCheck == nil
	if fresh {
		u.state = StateChecking
	}

	u.mu.Unlock()

	result := u.decider.Decide(ctx, req)
	if !fresh || result == req.Cached {
		return result, nil
	}

	u.mu.Lock()
	u.lastCheck = result
	u.checkedAt = u.now()
	u.state = stateForCheck(result)
	snapshot := u.snapshotLocked()
	u.mu.Unlock()

	logger.InfoKV(ctx, "Update check finished", "result", result.Status.String(), "state", stateForCheck(result).String())

	u.persist(ctx, &snapshot)

	return result, nil
}

// Update queues one background task that checks if needed, installs an
// available release and then notifies every callback exactly once.
// No callback fires when the task cannot be queued.
func (u *Updater) Update(ctx context.Context) error {
	if u.ProjectID() == projectIDUnset {
		return ErrProjectIDUnset
	}

	if err := u.scheduler.RunAsync(ctx, u.runUpdate); err != nil {
		return fmt.Errorf("queue update: %w", err)
	}

	return nil
}

// runUpdate is the background part of Update.
func (u *Updater) runUpdate(ctx context.Context) {
	ctx = u.logContext(ctx)

	check, err := u.check(ctx, false)
	if err != nil {
		logger.ErrorKV(ctx, "Update check failed", "error", err)
	}

	result := release.InstallNotAttempted

	if check.UpdateAvailable() {
		u.setState(StateInstalling)

		result = u.install(ctx, *check.Release)
	}

	u.mu.Lock()
	u.lastInstall = result
	u.installedAt = u.now()

	if result != release.InstallNotAttempted || u.state == StateInstalling {
		u.state = stateForInstall(result)
	}

	snapshot := u.snapshotLocked()
	callbacks := slices.Clone(u.callbacks)
	u.mu.Unlock()

	u.persist(ctx, &snapshot)

	logger.InfoKV(ctx, "Update finished", "result", result.String(), "callbacks", len(callbacks))

	u.scheduler.RunSync(func() {
		for _, callback := range callbacks {
			callback(result, u)
		}
	})
}

// install prepares the backup directory and applies entry.
func (u *Updater) install(ctx context.Context, entry release.Entry) release.InstallResult {
	if err := u.installer.EnsureBackupDir(); err != nil {
		logger.ErrorKV(ctx, "Unable to create backup directory", "error", err)
		return release.InstallIOFailure
	}

	return u.installer.Install(ctx, entry, u.host.ArtifactPath())
}

// Rollback restores the most recent backup over the artifact.
func (u *Updater) Rollback(ctx context.Context) (*installer.Backup, error) {
	return u.installer.Rollback(u.logContext(ctx), u.host.ArtifactPath())
}

func (u *Updater) setState(s State) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.state = s
}

// persist saves the snapshot when a repository is configured. Failures are logged only.
func (u *Updater) persist(ctx context.Context, snapshot *release.Snapshot) {
	if u.repo == nil {
		return
	}

	if err := u.repo.Save(ctx, snapshot); err != nil {
		logger.WarnKV(ctx, "Unable to persist update state", "error", err)
	}
}

func (u *Updater) logContext(ctx context.Context) context.Context {
	ctx = logger.WithName(ctx, "updater")

	return logger.WithKV(ctx, "artifact", u.host.Name())
}
