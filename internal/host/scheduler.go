package host

import "context"

// Scheduler runs engine work on behalf of the host.
type Scheduler interface {
	// RunAsync queues task for the background worker. An error means the
	// task will never run.
	RunAsync(ctx context.Context, task func(ctx context.Context)) error
	// RunSync queues fn for the host's primary context. Functions queued
	// while the scheduler shuts down may be dropped.
	RunSync(fn func())
}

// Host exposes what the engine needs to know about the hosted artifact.
type Host interface {
	// Name is the display name used for logging and backup file names.
	Name() string
	// Version is the installed version of the artifact.
	Version() string
	// ArtifactPath is the location of the artifact on disk.
	ArtifactPath() string
}

// Static is a Host with fixed values.
type Static struct {
	name         string
	version      string
	artifactPath string
}

// NewStatic creates a Host with fixed values.
func NewStatic(name, version, artifactPath string) *Static {
	return &Static{
		name:         name,
		version:      version,
		artifactPath: artifactPath,
	}
}

// Name returns the display name.
func (s *Static) Name() string {
	return s.name
}

// Version returns the installed version.
func (s *Static) Version() string {
	return s.version
}

// ArtifactPath returns the artifact location.
func (s *Static) ArtifactPath() string {
	return s.artifactPath
}
