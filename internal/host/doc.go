// Package host contains the collaborators the update engine needs from the
// process embedding it: an execution loop with a background queue and a
// primary context, static facts about the hosted artifact, and a pid marker
// that keeps two processes from updating the same working root.
package host
