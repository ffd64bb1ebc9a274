package installer

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/oshokin/artifact-updater/internal/domain/release"
	"github.com/oshokin/artifact-updater/internal/logger"
)

const (
	// BackupsDirName is the backup directory inside the working root.
	BackupsDirName = "backups"
	// StagingDirName holds in-progress downloads inside the working root.
	StagingDirName = "staging"

	// DefaultFileMode is used for installed artifacts without a previous mode.
	DefaultFileMode os.FileMode = 0o755
	// DefaultDirMode is used for every directory the installer creates.
	DefaultDirMode os.FileMode = 0o755
	// DefaultMaxRedirects bounds interstitial hops when no option is given.
	DefaultMaxRedirects = 5
	// DefaultTimeout bounds each download when no option is given.
	DefaultTimeout = 30 * time.Second

	// ownerWritable is OR-ed into a mode to make a file writable by its owner.
	ownerWritable os.FileMode = 0o200
)

var (
	errChecksumMismatch  = errors.New("checksum mismatch")
	errTooManyRedirects  = errors.New("too many interstitial redirects")
	errBadHTTPStatus     = errors.New("unexpected http status")
	errUnsafeArchivePath = errors.New("archive entry escapes the installation directory")
	errInvalidFileName   = errors.New("invalid staged file name")
	errArtifactNameEmpty = errors.New("artifact name must be provided")
)

// Installer downloads, verifies, backs up and installs releases of one artifact.
type Installer struct {
	// backupDir receives timestamped copies of the artifact.
	backupDir string
	// stagingDir receives downloads before they are verified and applied.
	stagingDir string
	// artifactName is the logical name embedded into backup file names.
	artifactName string
	// userAgent is sent with every download.
	userAgent string
	// httpClient performs the downloads.
	httpClient *http.Client
	// maxRedirects bounds interstitial hops per install.
	maxRedirects int
	// strictChecksum turns an unexplained digest mismatch into a failure.
	strictChecksum bool
	// now is the clock used for backup names.
	now func() time.Time
}

// Option configures an Installer.
type Option func(*Installer)

// WithHTTPClient replaces the HTTP client used for downloads.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(i *Installer) {
		if httpClient != nil {
			i.httpClient = httpClient
		}
	}
}

// WithTimeout bounds each download.
func WithTimeout(timeout time.Duration) Option {
	return func(i *Installer) {
		if timeout > 0 {
			i.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithUserAgent sets the User-Agent header of downloads.
func WithUserAgent(userAgent string) Option {
	return func(i *Installer) {
		i.userAgent = userAgent
	}
}

// WithMaxRedirects bounds how many interstitials are followed per install.
func WithMaxRedirects(maxRedirects int) Option {
	return func(i *Installer) {
		if maxRedirects >= 0 {
			i.maxRedirects = maxRedirects
		}
	}
}

// WithStrictChecksum controls whether a digest mismatch that is not an
// interstitial aborts the install. It is enabled by default.
func WithStrictChecksum(strict bool) Option {
	return func(i *Installer) {
		i.strictChecksum = strict
	}
}

// WithClock replaces the clock used for backup names.
func WithClock(now func() time.Time) Option {
	return func(i *Installer) {
		if now != nil {
			i.now = now
		}
	}
}

// New creates an installer rooted at workingDir for the artifact called artifactName.
func New(workingDir, artifactName string, opts ...Option) (*Installer, error) {
	artifactName = filepath.Base(artifactName)
	if artifactName == "" || artifactName == "." || artifactName == string(filepath.Separator) {
		return nil, errArtifactNameEmpty
	}

	i := &Installer{
		backupDir:      filepath.Join(workingDir, BackupsDirName),
		stagingDir:     filepath.Join(workingDir, StagingDirName),
		artifactName:   artifactName,
		httpClient:     &http.Client{Timeout: DefaultTimeout},
		maxRedirects:   DefaultMaxRedirects,
		strictChecksum: true,
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(i)
	}

	return i, nil
}

// BackupDir returns the directory receiving backups.
func (i *Installer) BackupDir() string {
	return i.backupDir
}

// EnsureBackupDir creates the backup directory when it is missing.
func (i *Installer) EnsureBackupDir() error {
	return os.MkdirAll(i.backupDir, DefaultDirMode)
}

// Install replaces the artifact at artifactPath with entry. The steps run in
// a fixed order: backup, download, verify, apply. Any failure stops the
// remaining steps and is reported through the result; the cause is logged.
func (i *Installer) Install(ctx context.Context, entry release.Entry, artifactPath string) release.InstallResult {
	ctx = logger.WithName(ctx, "installer")
	ctx = logger.WithKV(ctx, "artifact", i.artifactName)

	logger.InfoKV(ctx, "Starting update", "release", entry.Name, "target", artifactPath)

	result, err := i.install(ctx, entry, artifactPath)
	if err != nil {
		logger.ErrorKV(ctx, "Update failed", "release", entry.Name, "result", result.String(), "error", err)
		return result
	}

	logger.InfoKV(ctx, "Update done", "release", entry.Name, "result", result.String())

	return result
}

// install runs the pipeline and classifies the first failure.
func (i *Installer) install(
	ctx context.Context,
	entry release.Entry,
	artifactPath string,
) (release.InstallResult, error) {
	backup, err := i.Backup(ctx, artifactPath)
	if err != nil {
		return release.InstallIOFailure, err
	}

	logger.InfoKV(ctx, "Backup created", "path", backup.Path)

	staged, err := i.fetchVerified(ctx, entry)
	if err != nil {
		return release.InstallIOFailure, err
	}

	if isDirectReplacement(staged, artifactPath) {
		if err = replaceArtifact(ctx, staged, artifactPath); err != nil {
			return release.InstallIOFailure, err
		}

		return release.InstallSucceeded, nil
	}

	return expandArchive(ctx, staged, artifactPath)
}
