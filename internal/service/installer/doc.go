// Package installer backs up, downloads, verifies and applies a release of a
// single artifact.
//
// Downloads land in a staging directory and are checked against the entry's
// MD5 digest. A mismatching download that turns out to be an "Object moved"
// HTML page is followed to its real location. A verified file with the same
// extension as the artifact replaces it atomically; anything else is treated
// as a zip archive and expanded next to the artifact.
package installer
