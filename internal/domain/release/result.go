package release

// CheckStatus is the verdict of one feed query.
type CheckStatus int

const (
	// CheckUpdateAvailable means a newer eligible release exists.
	CheckUpdateAvailable CheckStatus = iota + 1
	// CheckNoUpdate means the installed version is current for the policy.
	CheckNoUpdate
	// CheckFeedUnreachable means the feed could not be queried or answered non-200.
	CheckFeedUnreachable
	// CheckResponseUnparseable means the feed answered with malformed data.
	CheckResponseUnparseable
	// CheckNameUnparseable means the newest eligible release name carries no version.
	CheckNameUnparseable
)

var checkStatusNames = map[CheckStatus]string{ //nolint:gochecknoglobals // Read-only lookup table.
	CheckUpdateAvailable:     "UPDATE_AVAILABLE",
	CheckNoUpdate:            "NO_UPDATE",
	CheckFeedUnreachable:     "FEED_UNREACHABLE",
	CheckResponseUnparseable: "RESPONSE_UNPARSEABLE",
	CheckNameUnparseable:     "NAME_UNPARSEABLE",
}

// String returns the upper snake case name of the status.
func (s CheckStatus) String() string {
	if name, ok := checkStatusNames[s]; ok {
		return name
	}

	return "UNKNOWN"
}

// ParseCheckStatus is the inverse of CheckStatus.String.
func ParseCheckStatus(s string) (CheckStatus, bool) {
	for status, name := range checkStatusNames {
		if name == s {
			return status, true
		}
	}

	return 0, false
}

// CheckResult is the cached outcome of the most recent feed query.
type CheckResult struct {
	// Status is the verdict.
	Status CheckStatus
	// Release is the selected entry; set only when Status is CheckUpdateAvailable.
	Release *Entry
}

// UpdateAvailable reports whether the result carries an installable release.
func (r *CheckResult) UpdateAvailable() bool {
	return r != nil && r.Status == CheckUpdateAvailable && r.Release != nil
}

// InstallResult is the outcome of one install attempt.
type InstallResult int

const (
	// InstallNotAttempted means no install ran (initial value, or nothing to install).
	InstallNotAttempted InstallResult = iota
	// InstallSucceeded means the artifact was replaced.
	InstallSucceeded
	// InstallUnknownArchiveType means the download was neither a direct replacement nor a readable archive.
	InstallUnknownArchiveType
	// InstallIOFailure means a network or filesystem error aborted the install.
	InstallIOFailure
)

var installResultNames = map[InstallResult]string{ //nolint:gochecknoglobals // Read-only lookup table.
	InstallNotAttempted:       "NOT_UPDATED",
	InstallSucceeded:          "UPDATE_SUCCEEDED",
	InstallUnknownArchiveType: "UNKNOWN_FILE_TYPE",
	InstallIOFailure:          "IOERROR",
}

// String returns the upper snake case name of the result.
func (r InstallResult) String() string {
	if name, ok := installResultNames[r]; ok {
		return name
	}

	return "UNKNOWN"
}

// ParseInstallResult is the inverse of InstallResult.String.
func ParseInstallResult(s string) (InstallResult, bool) {
	for result, name := range installResultNames {
		if name == s {
			return result, true
		}
	}

	return InstallNotAttempted, false
}
