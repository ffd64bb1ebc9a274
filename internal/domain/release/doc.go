// Package release contains the core domain types of the updater.
//
// It defines feed entries, channels and the channel policy, skip tags, the
// check and install result enums, and the version comparison used to decide
// whether a release is newer than the installed artifact.
package release
