package release

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

var (
	// ErrNameUnparseable is returned when a release name does not end with a version.
	ErrNameUnparseable = errors.New("release name cannot be parsed")
	// ErrMalformedVersion is returned when a version segment is not a non-negative integer.
	ErrMalformedVersion = errors.New("malformed version")
)

// releaseNamePattern accepts "<text><whitespace>[v]<digits>[.<digits>...]" and captures the digits.
var releaseNamePattern = regexp.MustCompile(`^.*\sv?(\d+(?:\.\d+)*)$`)

// versionPattern is a dot separated sequence of non-negative integers.
var versionPattern = regexp.MustCompile(`^\d+(?:\.\d+)*$`)

// IsNewer reports whether the release called candidateName is newer than the
// installed version. Anything after the first dash of the installed version
// is dropped, and skip tags are removed from both sides before comparing.
// Versions are compared segment by segment with missing segments read as zero.
func IsNewer(installed, candidateName string, skipTags SkipTags) (bool, error) {
	installed, _, _ = strings.Cut(installed, "-")
	installed = strings.TrimSpace(skipTags.Strip(installed))

	matches := releaseNamePattern.FindStringSubmatch(skipTags.Strip(candidateName))
	if matches == nil {
		return false, fmt.Errorf("%q: %w", candidateName, ErrNameUnparseable)
	}

	candidateVersion, err := parseVersion(matches[1])
	if err != nil {
		return false, fmt.Errorf("release %q: %w", candidateName, err)
	}

	installedVersion, err := parseVersion(installed)
	if err != nil {
		return false, fmt.Errorf("installed version: %w", err)
	}

	return installedVersion.LessThan(candidateVersion), nil
}

// ExtractVersion returns the trailing version of a release name without comparing it.
func ExtractVersion(candidateName string, skipTags SkipTags) (string, error) {
	matches := releaseNamePattern.FindStringSubmatch(skipTags.Strip(candidateName))
	if matches == nil {
		return "", fmt.Errorf("%q: %w", candidateName, ErrNameUnparseable)
	}

	return matches[1], nil
}

func parseVersion(raw string) (*goversion.Version, error) {
	if raw == "" {
		return nil, fmt.Errorf("empty version: %w", ErrMalformedVersion)
	}

	if !versionPattern.MatchString(raw) {
		return nil, fmt.Errorf("%q: %w", raw, ErrMalformedVersion)
	}

	parsed, err := goversion.NewVersion(raw)
	if err != nil {
		return nil, fmt.Errorf("%q: %w: %w", raw, ErrMalformedVersion, err)
	}

	return parsed, nil
}
