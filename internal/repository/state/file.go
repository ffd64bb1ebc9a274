package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/artifact-updater/internal/config"
	"github.com/oshokin/artifact-updater/internal/domain/release"
)

// DefaultFilename is the state file name inside the working root.
const DefaultFilename = "update-state.yaml"

// Repository defines persistence operations for the update snapshot.
type Repository interface {
	Load(ctx context.Context) (*release.Snapshot, error)
	Save(ctx context.Context, snapshot *release.Snapshot) error
}

// FileRepository persists the update snapshot to a YAML file on disk.
type FileRepository struct {
	// path is the filesystem location of the YAML state file.
	path string
	// mu protects concurrent access to the state file.
	mu sync.Mutex
}

// ErrNotFound is returned when the state file does not exist yet.
var ErrNotFound = errors.New("state not found")

var errUnknownValue = errors.New("unknown value")

// document is the on-disk shape of a Snapshot.
type document struct {
	ProjectID        int           `yaml:"project_id"`
	InstalledVersion string        `yaml:"installed_version,omitempty"`
	CheckedAt        *time.Time    `yaml:"checked_at,omitempty"`
	CheckStatus      string        `yaml:"check_status,omitempty"`
	Release          *releaseEntry `yaml:"release,omitempty"`
	InstalledAt      *time.Time    `yaml:"installed_at,omitempty"`
	InstallResult    string        `yaml:"install_result"`
}

// releaseEntry is the on-disk shape of a release.Entry.
type releaseEntry struct {
	Name        string `yaml:"name"`
	Channel     string `yaml:"channel"`
	DownloadURL string `yaml:"download_url"`
	FileName    string `yaml:"file_name"`
	ContentHash string `yaml:"md5"`
}

// NewFileRepository creates a repository that reads/writes YAML at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the snapshot from disk.
func (r *FileRepository) Load(_ context.Context) (*release.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read state file: %w", err)
	}

	var doc document
	if err = yaml.Unmarshal(contents, &doc); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	return fromDocument(&doc)
}

// Save writes the snapshot to disk using YAML representation.
func (r *FileRepository) Save(_ context.Context, snapshot *release.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(toDocument(snapshot))
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(r.path), config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	return nil
}

// fromDocument converts the YAML document into the domain Snapshot model.
func fromDocument(doc *document) (*release.Snapshot, error) {
	snapshot := &release.Snapshot{
		ProjectID:        doc.ProjectID,
		InstalledVersion: doc.InstalledVersion,
	}

	if doc.CheckedAt != nil {
		snapshot.CheckedAt = *doc.CheckedAt
	}

	if doc.InstalledAt != nil {
		snapshot.InstalledAt = *doc.InstalledAt
	}

	if doc.CheckStatus != "" {
		status, ok := release.ParseCheckStatus(doc.CheckStatus)
		if !ok {
			return nil, fmt.Errorf("check status %q: %w", doc.CheckStatus, errUnknownValue)
		}

		snapshot.Check = &release.CheckResult{Status: status}

		if doc.Release != nil {
			snapshot.Check.Release = &release.Entry{
				Name:        doc.Release.Name,
				Channel:     release.ParseChannel(doc.Release.Channel),
				DownloadURL: doc.Release.DownloadURL,
				FileName:    doc.Release.FileName,
				ContentHash: doc.Release.ContentHash,
			}
		}
	}

	if doc.InstallResult != "" {
		result, ok := release.ParseInstallResult(doc.InstallResult)
		if !ok {
			return nil, fmt.Errorf("install result %q: %w", doc.InstallResult, errUnknownValue)
		}

		snapshot.Install = result
	}

	return snapshot, nil
}

// toDocument converts the domain Snapshot model into the YAML document.
func toDocument(snapshot *release.Snapshot) *document {
	doc := &document{
		ProjectID:        snapshot.ProjectID,
		InstalledVersion: snapshot.InstalledVersion,
		InstallResult:    snapshot.Install.String(),
	}

	if !snapshot.CheckedAt.IsZero() {
		checkedAt := snapshot.CheckedAt.UTC()
		doc.CheckedAt = &checkedAt
	}

	if !snapshot.InstalledAt.IsZero() {
		installedAt := snapshot.InstalledAt.UTC()
		doc.InstalledAt = &installedAt
	}

	if snapshot.Check != nil {
		doc.CheckStatus = snapshot.Check.Status.String()

		if entry := snapshot.Check.Release; entry != nil {
			doc.Release = &releaseEntry{
				Name:        entry.Name,
				Channel:     entry.Channel.String(),
				DownloadURL: entry.DownloadURL,
				FileName:    entry.FileName,
				ContentHash: entry.ContentHash,
			}
		}
	}

	return doc
}
