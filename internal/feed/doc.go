// Package feed queries the remote release feed.
//
// A single GET against /servermods/files?projectIds={id} returns a JSON array
// of releases, oldest first. Transport failures and non-200 answers are
// reported as ErrFeedUnreachable; malformed bodies as ErrResponseUnparseable.
package feed
