// Package config defines the updater settings and provides helpers to load,
// validate and save them in YAML format.
//
// Validate fills defaults for the feed host, working root, timeouts, the
// redirect bound and the log file, so a minimal file only needs the project
// id and the artifact path.
package config
