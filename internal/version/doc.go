// Package version exposes build metadata for the updater.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags. UserAgent renders the identifier sent to release feeds.
package version
