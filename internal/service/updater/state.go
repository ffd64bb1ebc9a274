package updater

import "github.com/oshokin/artifact-updater/internal/domain/release"

// State is the lifecycle position of an Updater.
type State int

const (
	// StateIdle means no check has run yet.
	StateIdle State = iota
	// StateChecking means a feed query is in flight.
	StateChecking
	// StateUpToDate means the last check found nothing to install.
	StateUpToDate
	// StateUpdateReady means the last check selected a release.
	StateUpdateReady
	// StateCheckFailed means the last check could not reach a verdict.
	StateCheckFailed
	// StateInstalling means an install is in flight.
	StateInstalling
	// StateInstalled means the last install succeeded.
	StateInstalled
	// StateFailed means the last install failed.
	StateFailed
)

// String returns the lower case name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChecking:
		return "checking"
	case StateUpToDate:
		return "up-to-date"
	case StateUpdateReady:
		return "update-ready"
	case StateCheckFailed:
		return "check-failed"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// stateForCheck maps a check verdict to the state it leads to.
func stateForCheck(result *release.CheckResult) State {
	switch {
	case result.UpdateAvailable():
		return StateUpdateReady
	case result.Status == release.CheckNoUpdate:
		return StateUpToDate
	default:
		return StateCheckFailed
	}
}

// stateForInstall maps an install result to the state it leads to.
func stateForInstall(result release.InstallResult) State {
	switch result {
	case release.InstallSucceeded:
		return StateInstalled
	case release.InstallNotAttempted:
		return StateUpToDate
	case release.InstallUnknownArchiveType, release.InstallIOFailure:
		return StateFailed
	default:
		return StateFailed
	}
}
