package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/artifact-updater/internal/config"
	"github.com/oshokin/artifact-updater/internal/feed"
	"github.com/oshokin/artifact-updater/internal/host"
	"github.com/oshokin/artifact-updater/internal/logger"
	"github.com/oshokin/artifact-updater/internal/repository/state"
	"github.com/oshokin/artifact-updater/internal/service/decision"
	"github.com/oshokin/artifact-updater/internal/service/installer"
	"github.com/oshokin/artifact-updater/internal/service/updater"
)

var (
	errArtifactNotConfigured = errors.New("artifact path is not configured, use --artifact or artifact_path")
	errUnknownLogLevel       = errors.New("unknown log level")
)

// application is the CLI host: it owns the loop the engine schedules on and
// every collaborator built from the settings.
type application struct {
	cfg       *config.Config
	loop      *host.Loop
	host      *host.Static
	installer *installer.Installer
	updater   *updater.Updater
	repo      *state.FileRepository
	marker    *host.Marker
	logCloser io.Closer
}

// newApplication loads the settings, applies the command line overrides and
// wires the engine.
func newApplication(ctx context.Context) (*application, error) {
	cfg, err := loadSettings()
	if err != nil {
		return nil, err
	}

	app := &application{cfg: cfg}

	if err = app.setupLogger(); err != nil {
		return nil, err
	}

	if cfg.ArtifactPath == "" {
		return app, errArtifactNotConfigured
	}

	name := cfg.ArtifactName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(cfg.ArtifactPath), filepath.Ext(cfg.ArtifactPath))
	}

	if name == "" {
		name = host.DetectDisplayName("artifact")
	}

	feedClient, err := feed.NewClient(cfg.FeedHost, cfg.UserAgent, feed.WithTimeout(cfg.Timeout))
	if err != nil {
		return app, err
	}

	app.installer, err = installer.New(cfg.WorkingDir, name,
		installer.WithTimeout(cfg.Timeout),
		installer.WithUserAgent(cfg.UserAgent),
		installer.WithMaxRedirects(cfg.MaxRedirects),
		installer.WithStrictChecksum(cfg.IsStrictChecksum()),
	)
	if err != nil {
		return app, err
	}

	policy, err := cfg.ChannelPolicy()
	if err != nil {
		return app, err
	}

	app.loop = host.NewLoop()
	app.host = host.NewStatic(name, cfg.InstalledVersion, cfg.ArtifactPath)
	app.repo = state.NewFileRepository(filepath.Join(cfg.WorkingDir, state.DefaultFilename))
	app.marker = host.NewMarker(filepath.Join(cfg.WorkingDir, host.MarkerFilename))
	app.updater = updater.New(app.host, app.loop, decision.NewEngine(feedClient), app.installer,
		updater.WithProjectID(cfg.ProjectID),
		updater.WithChannels(policy.Channels()...),
		updater.WithRepository(app.repo),
	)
	app.updater.SetSkipTags(ctx, cfg.SkipTags...)

	logger.DebugKV(ctx, "Updater configured",
		"artifact", cfg.ArtifactPath,
		"working_dir", cfg.WorkingDir,
		"project_id", cfg.ProjectID,
		"feed", cfg.FeedHost)

	return app, nil
}

// loadSettings reads the settings file. A missing file at the default
// location means every setting comes from flags and defaults.
func loadSettings() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if configPath != config.DefaultConfigFilename || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}

		cfg = new(config.Config)
	}

	if artifactPath != "" {
		cfg.ArtifactPath = artifactPath
	}

	if installedVersion != "" {
		cfg.InstalledVersion = installedVersion
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	if err = config.Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setupLogger applies the level and tees the global logger into the log file.
func (a *application) setupLogger() error {
	level, ok := logger.ParseLogLevel(a.cfg.LogLevel)
	if !ok {
		return fmt.Errorf("%q: %w", a.cfg.LogLevel, errUnknownLogLevel)
	}

	logger.SetLevel(level)

	fileOutput, closer, err := logger.WithFileOutput(a.cfg.LogFilePath())
	if err != nil {
		return err
	}

	logger.SetLogger(logger.New(nil, fileOutput))
	a.logCloser = closer

	return nil
}

// Close stops the loop and releases the log file.
func (a *application) Close() {
	if a.loop != nil {
		a.loop.Stop()
	}

	_ = logger.Logger().Sync()

	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}
