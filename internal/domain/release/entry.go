package release

import "strings"

// Entry is one release as published by the feed.
type Entry struct {
	// Name is the display name, expected to end with the version ("Widget v1.0.0").
	Name string
	// Channel is the maturity tier of the release.
	Channel Channel
	// DownloadURL points at the artifact or at an HTML interstitial.
	DownloadURL string
	// FileName is the name the artifact is staged under.
	FileName string
	// ContentHash is the hex MD5 digest declared by the feed.
	ContentHash string
}

// WithDownloadURL returns a copy of the entry pointing at another location.
func (e Entry) WithDownloadURL(url string) Entry {
	e.DownloadURL = url

	return e
}

// SkipTags is a set of name suffixes that exclude a release from consideration.
type SkipTags []string

// NewSkipTags keeps only tags that start with a dash, like "-nightly".
// The second value lists rejected tags so callers can report them.
func NewSkipTags(tags ...string) (SkipTags, []string) {
	var (
		accepted = make(SkipTags, 0, len(tags))
		rejected []string
	)

	for _, tag := range tags {
		if !strings.HasPrefix(tag, "-") {
			rejected = append(rejected, tag)
			continue
		}

		accepted = append(accepted, tag)
	}

	return accepted, rejected
}

// Excludes reports whether name ends with any tag, ignoring case.
func (s SkipTags) Excludes(name string) bool {
	lowerName := strings.ToLower(name)

	for _, tag := range s {
		if strings.HasSuffix(lowerName, strings.ToLower(tag)) {
			return true
		}
	}

	return false
}

// Strip removes every occurrence of every tag from value.
func (s SkipTags) Strip(value string) string {
	for _, tag := range s {
		value = strings.ReplaceAll(value, tag, "")
	}

	return value
}
