package updater

import (
	"time"

	"github.com/oshokin/artifact-updater/internal/domain/release"
	"github.com/oshokin/artifact-updater/internal/repository/state"
)

// Option configures an Updater at construction time.
type Option func(*Updater)

// WithProjectID sets the feed project id.
func WithProjectID(projectID int) Option {
	return func(u *Updater) {
		u.projectID = normalizeProjectID(projectID)
	}
}

// WithChannels restricts updates to the given channels.
func WithChannels(channels ...release.Channel) Option {
	return func(u *Updater) {
		u.policy = release.NewChannelPolicy(channels...)
	}
}

// WithSkipTags excludes releases whose names end with any tag.
// Tags must already be validated, see release.NewSkipTags.
func WithSkipTags(tags release.SkipTags) Option {
	return func(u *Updater) {
		u.skipTags = tags
	}
}

// WithCallbacks registers callbacks invoked after every Update.
func WithCallbacks(callbacks ...Callback) Option {
	return func(u *Updater) {
		u.callbacks = append(u.callbacks, callbacks...)
	}
}

// WithRepository persists the last check and install through repo.
func WithRepository(repo state.Repository) Option {
	return func(u *Updater) {
		u.repo = repo
	}
}

// WithClock replaces the clock used for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(u *Updater) {
		if now != nil {
			u.now = now
		}
	}
}
