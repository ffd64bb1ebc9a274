package release

import "time"

// Snapshot is the persisted view of the most recent check and install.
type Snapshot struct {
	// ProjectID is the feed project the results belong to.
	ProjectID int
	// InstalledVersion is the version that was installed when the check ran.
	InstalledVersion string
	// CheckedAt is when the last check completed; zero if none ran.
	CheckedAt time.Time
	// Check is the last check result, nil if none ran.
	Check *CheckResult
	// InstalledAt is when the last install attempt completed; zero if none ran.
	InstalledAt time.Time
	// Install is the last install result.
	Install InstallResult
}
