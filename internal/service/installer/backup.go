package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/oshokin/artifact-updater/internal/logger"
)

const (
	// backupPrefix starts every backup file name.
	backupPrefix = "backup-"
	// maxBackupAttempts bounds timestamp bumps when a backup name is taken.
	maxBackupAttempts = 100
)

// ErrNoBackups is returned by Rollback when the backup directory holds no backup of the artifact.
var ErrNoBackups = errors.New("no backups available")

var errBackupNameTaken = errors.New("unable to find a free backup name")

// Backup describes one timestamped copy of the artifact.
type Backup struct {
	// Path is the location of the backup file.
	Path string
	// CreatedAt is the timestamp encoded into the file name.
	CreatedAt time.Time
	// Size is the backup length in bytes.
	Size int64
}

// backupName builds backup-{epoch millis}-{name}{ext} for the artifact.
func (i *Installer) backupName(createdAt time.Time, ext string) string {
	return backupPrefix + strconv.FormatInt(createdAt.UnixMilli(), 10) + "-" + i.artifactName + ext
}

// Backup copies the artifact at artifactPath into the backup directory.
// Existing backups are never overwritten: when the name is taken the
// timestamp moves forward by one millisecond.
func (i *Installer) Backup(ctx context.Context, artifactPath string) (*Backup, error) {
	source, err := os.Open(filepath.Clean(artifactPath))
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}

	defer func() {
		_ = source.Close()
	}()

	info, err := source.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat artifact: %w", err)
	}

	if err = i.EnsureBackupDir(); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	var (
		ext       = filepath.Ext(artifactPath)
		createdAt = i.now()
		target    *os.File
		path      string
	)

	for attempt := 0; attempt < maxBackupAttempts; attempt++ {
		path = filepath.Join(i.backupDir, i.backupName(createdAt, ext))

		target, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
		if err == nil {
			break
		}

		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create backup: %w", err)
		}

		createdAt = createdAt.Add(time.Millisecond)
	}

	if target == nil {
		return nil, fmt.Errorf("%s: %w", i.artifactName, errBackupNameTaken)
	}

	written, err := io.Copy(target, source)
	if err != nil {
		_ = target.Close()
		_ = os.Remove(path)

		return nil, fmt.Errorf("copy artifact: %w", err)
	}

	if err = target.Close(); err != nil {
		return nil, fmt.Errorf("close backup: %w", err)
	}

	logger.DebugKV(ctx, "Artifact copied", "from", artifactPath, "to", path, "bytes", written)

	return &Backup{
		Path:      path,
		CreatedAt: time.UnixMilli(createdAt.UnixMilli()),
		Size:      written,
	}, nil
}

// ListBackups returns the backups of the artifact, newest first.
// A missing backup directory yields an empty list.
func (i *Installer) ListBackups() ([]Backup, error) {
	entries, err := os.ReadDir(i.backupDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, err
	}

	backups := make([]Backup, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		createdAt, ok := i.parseBackupName(entry.Name())
		if !ok {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return nil, err
		}

		backups = append(backups, Backup{
			Path:      filepath.Join(i.backupDir, entry.Name()),
			CreatedAt: createdAt,
			Size:      info.Size(),
		})
	}

	sort.SliceStable(backups, func(a, b int) bool {
		return backups[a].CreatedAt.After(backups[b].CreatedAt)
	})

	return backups, nil
}

// parseBackupName returns the creation time encoded in a backup file name of this artifact.
func (i *Installer) parseBackupName(name string) (time.Time, bool) {
	rest, found := strings.CutPrefix(name, backupPrefix)
	if !found {
		return time.Time{}, false
	}

	millis, suffix, found := strings.Cut(rest, "-")
	if !found {
		return time.Time{}, false
	}

	ext, found := strings.CutPrefix(suffix, i.artifactName)
	if !found || (ext != "" && !strings.HasPrefix(ext, ".")) {
		return time.Time{}, false
	}

	value, err := strconv.ParseInt(millis, 10, 64)
	if err != nil {
		return time.Time{}, false
	}

	return time.UnixMilli(value), true
}

// Rollback restores the newest backup over the artifact at artifactPath.
// The current artifact is backed up first so the rollback can be undone.
func (i *Installer) Rollback(ctx context.Context, artifactPath string) (*Backup, error) {
	ctx = logger.WithName(ctx, "installer")

	backups, err := i.ListBackups()
	if err != nil {
		return nil, err
	}

	if len(backups) == 0 {
		return nil, ErrNoBackups
	}

	latest := backups[0]

	if _, err = os.Stat(artifactPath); err == nil {
		var current *Backup

		if current, err = i.Backup(ctx, artifactPath); err != nil {
			return nil, err
		}

		logger.InfoKV(ctx, "Current artifact saved before rollback", "path", current.Path)
	}

	if err = replaceArtifact(ctx, latest.Path, artifactPath); err != nil {
		return nil, fmt.Errorf("restore %s: %w", latest.Path, err)
	}

	logger.InfoKV(ctx, "Artifact restored", "from", latest.Path, "to", artifactPath)

	return &latest, nil
}
