package release

import "strings"

// Channel is the maturity tier of a published release.
type Channel int

const (
	// ChannelUnknown marks a feed value that matched no known tier. It is never eligible.
	ChannelUnknown Channel = iota
	// ChannelRelease is a normal release.
	ChannelRelease
	// ChannelBeta is a beta release.
	ChannelBeta
	// ChannelAlpha is an alpha release.
	ChannelAlpha
)

// AllChannels lists every known channel, from most to least stable.
func AllChannels() []Channel {
	return []Channel{ChannelRelease, ChannelBeta, ChannelAlpha}
}

// ParseChannel matches a feed releaseType value case-insensitively.
func ParseChannel(s string) Channel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "release":
		return ChannelRelease
	case "beta":
		return ChannelBeta
	case "alpha":
		return ChannelAlpha
	default:
		return ChannelUnknown
	}
}

// String returns the feed representation of the channel.
func (c Channel) String() string {
	switch c {
	case ChannelRelease:
		return "release"
	case ChannelBeta:
		return "beta"
	case ChannelAlpha:
		return "alpha"
	case ChannelUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// ChannelPolicy is the set of channels allowed to produce updates.
// The zero value allows nothing; use DefaultChannelPolicy for the default.
type ChannelPolicy struct {
	allowed map[Channel]struct{}
}

// DefaultChannelPolicy allows every known channel.
func DefaultChannelPolicy() ChannelPolicy {
	return NewChannelPolicy(AllChannels()...)
}

// NewChannelPolicy allows exactly the given channels. ChannelUnknown is ignored.
func NewChannelPolicy(channels ...Channel) ChannelPolicy {
	allowed := make(map[Channel]struct{}, len(channels))

	for _, c := range channels {
		if c == ChannelUnknown {
			continue
		}

		allowed[c] = struct{}{}
	}

	return ChannelPolicy{allowed: allowed}
}

// Allows reports whether releases from c are eligible.
func (p ChannelPolicy) Allows(c Channel) bool {
	_, ok := p.allowed[c]

	return ok
}

// Channels returns the allowed channels in stability order.
func (p ChannelPolicy) Channels() []Channel {
	result := make([]Channel, 0, len(p.allowed))

	for _, c := range AllChannels() {
		if p.Allows(c) {
			result = append(result, c)
		}
	}

	return result
}
