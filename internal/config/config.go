package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/artifact-updater/internal/domain/release"
	"github.com/oshokin/artifact-updater/internal/version"
)

// Config holds the settings of one updater instance.
type Config struct {
	// ProjectID identifies the artifact on the release feed. Zero or negative means unset.
	ProjectID int `yaml:"project_id"`
	// FeedHost is the scheme and host of the release feed.
	FeedHost string `yaml:"feed_host"`
	// UserAgent is sent with every feed request.
	UserAgent string `yaml:"user_agent"`
	// WorkingDir is the root for backups, staged downloads, the log and the state file.
	WorkingDir string `yaml:"working_dir"`
	// ArtifactPath is the installed artifact the updater replaces.
	ArtifactPath string `yaml:"artifact_path"`
	// ArtifactName is the logical name used in logs and backup names.
	ArtifactName string `yaml:"artifact_name"`
	// InstalledVersion is the version string of the installed artifact.
	InstalledVersion string `yaml:"installed_version"`
	// Channels lists the allowed release channels; empty means all.
	Channels []string `yaml:"channels"`
	// SkipTags lists release name suffixes to ignore; each must start with a dash.
	SkipTags []string `yaml:"skip_tags"`
	// Timeout bounds every feed request and artifact download.
	Timeout time.Duration `yaml:"timeout"`
	// MaxRedirects bounds how many HTML interstitials are followed per install.
	MaxRedirects int `yaml:"max_redirects"`
	// StrictChecksum rejects downloads whose digest does not match the feed.
	// A nil value means true.
	StrictChecksum *bool `yaml:"strict_checksum"`
	// LogFile is the append-only log, relative to WorkingDir unless absolute.
	LogFile string `yaml:"log_file"`
	// LogLevel is the minimum level written to the console and the log file.
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is the default filename for updater settings.
	DefaultConfigFilename = "artifact-updater-settings.yaml"

	// DefaultFeedHost is the release feed queried when none is configured.
	DefaultFeedHost = "https://api.curseforge.com"

	// DefaultWorkingDir is the working root relative to the current directory.
	DefaultWorkingDir = "artifact-updater"

	// DefaultLogFilename is the append-only log inside the working root.
	DefaultLogFilename = "updater.log"

	// DefaultTimeout is the default duration for feed requests and downloads.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRedirects is the default number of interstitial hops per install.
	DefaultMaxRedirects = 5

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// DefaultDirPermissions is the permission of directories created in the working root.
	DefaultDirPermissions = 0o755

	// DefaultLogLevel is used when no level is configured.
	DefaultLogLevel = "info"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownChannel is returned for a channel outside release, beta and alpha.
	errUnknownChannel = errors.New("unknown release channel")
	// errInvalidSkipTag is returned for a skip tag without the leading dash.
	errInvalidSkipTag = errors.New("skip tag must start with a dash")
	// errNegativeRedirects is returned for a negative redirect bound.
	errNegativeRedirects = errors.New("max redirects must not be negative")
)

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the settings and fills defaults for optional fields.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.FeedHost == "" {
		settings.FeedHost = DefaultFeedHost
	}

	if _, err := url.ParseRequestURI(settings.FeedHost); err != nil {
		return fmt.Errorf("invalid feed host: %w", err)
	}

	if settings.UserAgent == "" {
		settings.UserAgent = version.UserAgent()
	}

	if settings.WorkingDir == "" {
		settings.WorkingDir = DefaultWorkingDir
	}

	if settings.LogFile == "" {
		settings.LogFile = DefaultLogFilename
	}

	if settings.LogLevel == "" {
		settings.LogLevel = DefaultLogLevel
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	switch {
	case settings.MaxRedirects < 0:
		return errNegativeRedirects
	case settings.MaxRedirects == 0:
		settings.MaxRedirects = DefaultMaxRedirects
	}

	if _, err := settings.ChannelPolicy(); err != nil {
		return err
	}

	for _, tag := range settings.SkipTags {
		if _, rejected := release.NewSkipTags(tag); len(rejected) > 0 {
			return fmt.Errorf("%q: %w", tag, errInvalidSkipTag)
		}
	}

	return nil
}

// ChannelPolicy converts the configured channel names into a policy.
func (c *Config) ChannelPolicy() (release.ChannelPolicy, error) {
	if len(c.Channels) == 0 {
		return release.DefaultChannelPolicy(), nil
	}

	channels := make([]release.Channel, 0, len(c.Channels))

	for _, name := range c.Channels {
		channel := release.ParseChannel(name)
		if channel == release.ChannelUnknown {
			return release.ChannelPolicy{}, fmt.Errorf("%q: %w", name, errUnknownChannel)
		}

		channels = append(channels, channel)
	}

	return release.NewChannelPolicy(channels...), nil
}

// IsStrictChecksum reports whether checksum mismatches abort installs.
func (c *Config) IsStrictChecksum() bool {
	return c.StrictChecksum == nil || *c.StrictChecksum
}

// LogFilePath resolves LogFile against WorkingDir.
func (c *Config) LogFilePath() string {
	if filepath.IsAbs(c.LogFile) {
		return c.LogFile
	}

	return filepath.Join(c.WorkingDir, c.LogFile)
}
