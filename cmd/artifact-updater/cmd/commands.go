package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/artifact-updater/internal/checksum"
	"github.com/oshokin/artifact-updater/internal/domain/release"
	"github.com/oshokin/artifact-updater/internal/logger"
	"github.com/oshokin/artifact-updater/internal/repository/state"
	"github.com/oshokin/artifact-updater/internal/service/updater"
)

var errUpdateFailed = errors.New("update failed")

var (
	// forceCheck discards any cached check result.
	forceCheck bool

	// checkCmd queries the feed and reports whether an update is available.
	checkCmd = &cobra.Command{
		Use:   "check",
		Short: "Check the release feed for a newer eligible release.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApplication(func(ctx context.Context, app *application) error {
				result, err := app.updater.CheckForUpdates(ctx, forceCheck)
				if err != nil {
					return err
				}

				printCheck(cmd.OutOrStdout(), result)

				return nil
			})
		},
	}

	// updateCmd checks the feed and installs an available release.
	updateCmd = &cobra.Command{
		Use:   "update",
		Short: "Download, verify and install the newest eligible release.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApplication(func(ctx context.Context, app *application) error {
				return runExclusive(ctx, app, func() error {
					return runUpdate(ctx, cmd.OutOrStdout(), app)
				})
			})
		},
	}

	// statusCmd prints the persisted result of the last check and update.
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the result of the last check and update.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadSettings()
			if err != nil {
				return err
			}

			repo := state.NewFileRepository(filepath.Join(cfg.WorkingDir, state.DefaultFilename))

			snapshot, err := repo.Load(cmd.Context())
			if errors.Is(err, state.ErrNotFound) {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no check has run yet")
				return nil
			}

			if err != nil {
				return err
			}

			printSnapshot(cmd.OutOrStdout(), snapshot)

			return nil
		},
	}

	// hashCmd prints the MD5 digest of a file.
	hashCmd = &cobra.Command{
		Use:   "hash <file>",
		Short: "Print the MD5 digest of a file as lowercase hex.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			digest, err := checksum.FileHash(args[0])
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), digest)

			return nil
		},
	}

	// backupsCmd lists the backups of the artifact.
	backupsCmd = &cobra.Command{
		Use:   "backups",
		Short: "List backups of the artifact, newest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApplication(func(_ context.Context, app *application) error {
				backups, err := app.installer.ListBackups()
				if err != nil {
					return err
				}

				if len(backups) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no backups in "+app.installer.BackupDir())
					return nil
				}

				for _, backup := range backups {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d\n",
						backup.CreatedAt.Format(time.RFC3339), backup.Path, backup.Size)
				}

				return nil
			})
		},
	}

	// rollbackCmd restores the newest backup over the artifact.
	rollbackCmd = &cobra.Command{
		Use:   "rollback",
		Short: "Restore the newest backup over the artifact.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApplication(func(ctx context.Context, app *application) error {
				return runExclusive(ctx, app, func() error {
					backup, err := app.updater.Rollback(ctx)
					if err != nil {
						return err
					}

					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "restored "+backup.Path)

					return nil
				})
			})
		},
	}
)

// withApplication builds the application for one command and tears it down afterwards.
func withApplication(run func(ctx context.Context, app *application) error) error {
	ctx, stop := signalContext()
	defer stop()

	app, err := newApplication(ctx)
	if app != nil {
		defer app.Close()
	}

	if err != nil {
		return err
	}

	// Named only now so the context logger is the one writing to the log file.
	return run(logger.WithName(ctx, "artifact-updater"), app)
}

// runExclusive holds the update marker of the working root while fn runs.
func runExclusive(ctx context.Context, app *application, fn func() error) error {
	if err := app.marker.Acquire(ctx); err != nil {
		return err
	}

	defer func() {
		if err := app.marker.Release(); err != nil {
			logger.WarnKV(ctx, "Unable to remove update marker", "path", app.marker.Path(), "error", err)
		}
	}()

	return fn()
}

// runUpdate queues an update and drives the loop until its callback has run.
func runUpdate(ctx context.Context, out io.Writer, app *application) error {
	var outcome release.InstallResult

	app.updater.RegisterCallback(func(result release.InstallResult, u *updater.Updater) {
		outcome = result

		_, _ = fmt.Fprintf(out, "update: %s (state: %s)\n", result, u.State())
	})

	if err := app.updater.Update(ctx); err != nil {
		return err
	}

	if err := app.loop.Drain(ctx); err != nil {
		return err
	}

	switch outcome {
	case release.InstallSucceeded, release.InstallNotAttempted:
		return nil
	case release.InstallUnknownArchiveType, release.InstallIOFailure:
		return fmt.Errorf("%s: %w", outcome, errUpdateFailed)
	default:
		return fmt.Errorf("%s: %w", outcome, errUpdateFailed)
	}
}

func printCheck(out io.Writer, result *release.CheckResult) {
	_, _ = fmt.Fprintln(out, "check: "+result.Status.String())

	if result.UpdateAvailable() {
		printRelease(out, result.Release)
	}
}

func printRelease(out io.Writer, entry *release.Entry) {
	_, _ = fmt.Fprintf(out, "release: %s (%s)\nfile: %s\nurl: %s\nmd5: %s\n",
		entry.Name, entry.Channel, entry.FileName, entry.DownloadURL, entry.ContentHash)
}

func printSnapshot(out io.Writer, snapshot *release.Snapshot) {
	_, _ = fmt.Fprintf(out, "project: %d\ninstalled version: %s\n", snapshot.ProjectID, snapshot.InstalledVersion)

	if snapshot.Check != nil {
		_, _ = fmt.Fprintf(out, "last check: %s at %s\n",
			snapshot.Check.Status, snapshot.CheckedAt.Format(time.RFC3339))

		if snapshot.Check.UpdateAvailable() {
			printRelease(out, snapshot.Check.Release)
		}
	}

	if !snapshot.InstalledAt.IsZero() {
		_, _ = fmt.Fprintf(out, "last update: %s at %s\n",
			snapshot.Install, snapshot.InstalledAt.Format(time.RFC3339))
	}
}
