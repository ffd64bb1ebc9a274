// Package state implements persistence for the update Snapshot.
//
// The FileRepository stores and loads the snapshot as YAML on disk and exposes
// a Repository interface that the updater service depends on.
package state
