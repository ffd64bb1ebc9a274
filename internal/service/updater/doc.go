// Package updater coordinates update checks and installs for a hosted artifact.
//
// An Updater caches the last check, runs installs on the host's background
// worker one at a time, records the outcome and reports it to every
// registered callback on the host's primary context. The last check and
// install are persisted so a later process can report them.
package updater
