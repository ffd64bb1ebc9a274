package installer

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/artifact-updater/internal/domain/release"
	"github.com/oshokin/artifact-updater/internal/logger"
)

// isDirectReplacement reports whether the staged file replaces the artifact
// as a whole rather than being expanded over it.
func isDirectReplacement(staged, artifactPath string) bool {
	return strings.EqualFold(filepath.Ext(staged), filepath.Ext(artifactPath))
}

// replaceArtifact swaps the artifact for the staged file, keeping the
// artifact's permissions when it already exists.
func replaceArtifact(ctx context.Context, staged, artifactPath string) error {
	data, err := os.Open(filepath.Clean(staged))
	if err != nil {
		return err
	}

	defer func() {
		_ = data.Close()
	}()

	info, err := os.Stat(artifactPath)
	if errors.Is(err, os.ErrNotExist) {
		return writeFile(data, artifactPath, DefaultFileMode)
	}

	if err != nil {
		return err
	}

	mode := info.Mode().Perm() | ownerWritable
	if err = makeWritable(artifactPath, info.Mode()); err != nil {
		return err
	}

	options := goupdate.Options{
		TargetPath: artifactPath,
		TargetMode: mode,
	}

	if err = goupdate.Apply(data, options); err != nil {
		return err
	}

	removeLeftovers(artifactPath)

	logger.DebugKV(ctx, "Artifact replaced", "from", staged, "to", artifactPath)

	return nil
}

// removeLeftovers deletes the copy of the previous artifact kept during a swap.
func removeLeftovers(artifactPath string) {
	dir, name := filepath.Split(artifactPath)

	for _, leftover := range []string{
		filepath.Join(dir, "."+name+".old"),
		artifactPath + ".old",
	} {
		if _, err := os.Stat(leftover); err == nil {
			_ = os.Remove(leftover)
		}
	}
}

// makeWritable adds owner write permission when it is missing.
func makeWritable(path string, mode os.FileMode) error {
	if mode.Perm()&ownerWritable != 0 {
		return nil
	}

	return os.Chmod(path, mode.Perm()|ownerWritable)
}

// expandArchive extracts the staged zip into the directory holding the
// artifact. The artifact itself is removed once, before the first entry is
// written, and only if the archive holds at least one entry.
func expandArchive(ctx context.Context, staged, artifactPath string) (release.InstallResult, error) {
	reader, err := zip.OpenReader(staged)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		if isArchiveFormatError(err) {
			return release.InstallUnknownArchiveType, fmt.Errorf("open %s: %w", staged, err)
		}

		return release.InstallIOFailure, fmt.Errorf("open %s: %w", staged, err)
	}

	defer func() {
		_ = reader.Close()
	}()

	if len(reader.File) == 0 {
		logger.WarnKV(ctx, "Archive is empty, nothing installed", "archive", staged)
		return release.InstallSucceeded, nil
	}

	installDir, err := filepath.Abs(filepath.Dir(artifactPath))
	if err != nil {
		return release.InstallIOFailure, err
	}

	targets := make([]string, len(reader.File))

	for index, file := range reader.File {
		if targets[index], err = entryTarget(file.Name, installDir); err != nil {
			return release.InstallIOFailure, err
		}
	}

	if info, statErr := os.Stat(artifactPath); statErr == nil {
		if err = makeWritable(artifactPath, info.Mode()); err != nil {
			return release.InstallIOFailure, err
		}
	}

	if err = os.Remove(artifactPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return release.InstallIOFailure, fmt.Errorf("remove artifact: %w", err)
	}

	for index, file := range reader.File {
		if err = extractFile(file, targets[index]); err != nil {
			if isArchiveFormatError(err) {
				return release.InstallUnknownArchiveType, err
			}

			return release.InstallIOFailure, err
		}
	}

	logger.InfoKV(ctx, "Archive expanded", "archive", staged, "entries", len(reader.File), "into", installDir)

	return release.InstallSucceeded, nil
}

// entryTarget resolves an archive entry name below installDir.
func entryTarget(name, installDir string) (string, error) {
	target := filepath.Join(installDir, filepath.FromSlash(name))

	relative, err := filepath.Rel(installDir, target)
	if err != nil || filepath.IsAbs(name) || relative == ".." ||
		strings.HasPrefix(relative, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", name, errUnsafeArchivePath)
	}

	return target, nil
}

// extractFile writes one archive entry to target.
func extractFile(file *zip.File, target string) error {
	if file.FileInfo().IsDir() {
		return os.MkdirAll(target, DefaultDirMode)
	}

	if err := os.MkdirAll(filepath.Dir(target), DefaultDirMode); err != nil {
		return err
	}

	content, err := file.Open()
	if err != nil {
		return fmt.Errorf("open entry %q: %w", file.Name, err)
	}

	defer func() {
		_ = content.Close()
	}()

	mode := file.Mode().Perm()
	if mode == 0 {
		mode = DefaultFileMode
	}

	return writeFile(content, target, mode|ownerWritable)
}

// writeFile creates or truncates path with the content of r.
func writeFile(r io.Reader, path string, mode os.FileMode) error {
	output, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	if _, err = io.Copy(output, r); err != nil {
		_ = output.Close()
		return err
	}

	return output.Close()
}

// isArchiveFormatError reports whether err means the data is not a readable zip.
func isArchiveFormatError(err error) bool {
	return errors.Is(err, zip.ErrFormat) ||
		errors.Is(err, zip.ErrAlgorithm) ||
		errors.Is(err, zip.ErrChecksum)
}
