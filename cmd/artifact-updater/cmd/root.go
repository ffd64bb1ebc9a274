package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/artifact-updater/internal/config"
	"github.com/oshokin/artifact-updater/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// artifactPath overrides the artifact_path setting.
	artifactPath string
	// installedVersion overrides the installed_version setting.
	installedVersion string
	// logLevel overrides the log_level setting.
	logLevel string

	// rootCmd represents the base command for checking and applying artifact updates.
	rootCmd = &cobra.Command{
		Use:   "artifact-updater",
		Short: "Keep a deployed artifact up to date with its release feed.",
		Long: `Polls a release feed for newer builds of an installed artifact, downloads and
verifies the newest eligible release and replaces the artifact in place,
keeping a timestamped backup of every replaced version.

Settings are read from a YAML file; the artifact path, installed version and
log level can be overridden on the command line.`,
		SilenceUsage: true,
	}
)

// Execute runs the artifact-updater CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext returns a context cancelled on SIGTERM or SIGINT.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVarP(&artifactPath, "artifact", "a", "", "path to the installed artifact")
	flags.StringVarP(&installedVersion, "installed-version", "i", "", "version of the installed artifact")
	flags.StringVarP(&logLevel, "log-level", "l", "", "minimum log level (debug, info, warn, error)")

	checkCmd.Flags().BoolVarP(&forceCheck, "force", "f", false, "query the feed even if a result is cached")

	rootCmd.AddCommand(checkCmd, updateCmd, statusCmd, hashCmd, backupsCmd, rollbackCmd)
}
