package decision

import (
	"context"
	"errors"

	"github.com/oshokin/artifact-updater/internal/domain/release"
	"github.com/oshokin/artifact-updater/internal/feed"
	"github.com/oshokin/artifact-updater/internal/logger"
)

// Source lists the releases of a project, oldest first.
type Source interface {
	Fetch(ctx context.Context, projectID int) ([]release.Entry, error)
}

// Request carries everything one decision depends on.
type Request struct {
	// ProjectID identifies the artifact on the feed.
	ProjectID int
	// InstalledVersion is the version of the artifact on disk.
	InstalledVersion string
	// Policy lists the eligible channels.
	Policy release.ChannelPolicy
	// SkipTags excludes releases by name suffix.
	SkipTags release.SkipTags
	// Force discards Cached and queries the feed.
	Force bool
	// Cached is the previous result, if any.
	Cached *release.CheckResult
}

// Engine selects the newest eligible release and compares it with the installed version.
type Engine struct {
	// source provides the feed entries.
	source Source
}

// NewEngine creates an engine backed by source.
func NewEngine(source Source) *Engine {
	return &Engine{
		source: source,
	}
}

// Decide returns the cached result unless forced or absent; otherwise it
// queries the feed and evaluates only the newest entry that passes the
// channel and skip-tag filters.
func (e *Engine) Decide(ctx context.Context, req *Request) *release.CheckResult {
	if !req.Force && req.Cached != nil {
		logger.DebugKV(ctx, "Reusing cached update check", "result", req.Cached.Status.String())
		return req.Cached
	}

	entries, err := e.source.Fetch(ctx, req.ProjectID)
	if err != nil {
		status := release.CheckFeedUnreachable
		if errors.Is(err, feed.ErrResponseUnparseable) {
			status = release.CheckResponseUnparseable
		}

		logger.ErrorKV(ctx, "Release feed query failed", "project_id", req.ProjectID, "error", err)

		return &release.CheckResult{Status: status}
	}

	candidate, found := newestEligible(entries, req.Policy, req.SkipTags)
	if !found {
		logger.InfoKV(ctx, "No eligible release in feed",
			"project_id", req.ProjectID, "entries", len(entries))

		return &release.CheckResult{Status: release.CheckNoUpdate}
	}

	return evaluate(ctx, candidate, req)
}

// newestEligible scans from the newest entry backwards and returns the first one the filters keep.
func newestEligible(entries []release.Entry, policy release.ChannelPolicy, skipTags release.SkipTags) (release.Entry, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]

		if !policy.Allows(entry.Channel) || skipTags.Excludes(entry.Name) {
			continue
		}

		return entry, true
	}

	return release.Entry{}, false
}

// evaluate compares the candidate with the installed version.
func evaluate(ctx context.Context, candidate release.Entry, req *Request) *release.CheckResult {
	newer, err := release.IsNewer(req.InstalledVersion, candidate.Name, req.SkipTags)

	switch {
	case errors.Is(err, release.ErrNameUnparseable):
		logger.ErrorKV(ctx, "Release name cannot be parsed", "name", candidate.Name, "error", err)
		return &release.CheckResult{Status: release.CheckNameUnparseable}
	case err != nil:
		logger.ErrorKV(ctx, "Version cannot be compared", "name", candidate.Name,
			"installed", req.InstalledVersion, "error", err)

		return &release.CheckResult{Status: release.CheckResponseUnparseable}
	case !newer:
		logger.InfoKV(ctx, "Installed version is current",
			"installed", req.InstalledVersion, "newest_eligible", candidate.Name)

		return &release.CheckResult{Status: release.CheckNoUpdate}
	}

	logger.InfoKV(ctx, "Update available",
		"installed", req.InstalledVersion, "release", candidate.Name, "channel", candidate.Channel.String())

	return &release.CheckResult{
		Status:  release.CheckUpdateAvailable,
		Release: &candidate,
	}
}
