package release

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestIsNewer_Lexicographic covers equal-length sequences decided at the first differing position.
func TestIsNewer_Lexicographic(t *testing.T) {
	t.Parallel()

	cases := []struct {
		installed string
		candidate string
		want      bool
	}{
		{"1.0.0", "Widget v1.0.1", true},
		{"1.0.0", "Widget v1.0.0", false},
		{"1.0.9", "Widget v1.1.0", true},
		{"2.0.0", "Widget v1.5.0", false},
		{"1.9.9", "Widget v2.0.0", true},
		{"1.10.0", "Widget v1.9.0", false},
		{"0.0.1", "Widget 1.0.0", true},
	}

	for _, tc := range cases {
		got, err := IsNewer(tc.installed, tc.candidate, nil)
		require.NoError(t, err, tc.candidate)
		require.Equal(t, tc.want, got, "%s vs %s", tc.installed, tc.candidate)
	}
}

// TestIsNewer_Padding checks that the shorter sequence is padded with zeros.
func TestIsNewer_Padding(t *testing.T) {
	t.Parallel()

	newer, err := IsNewer("1.2", "Widget v1.2.0.1", nil)
	require.NoError(t, err)
	require.True(t, newer)

	newer, err = IsNewer("1.2.0", "Widget v1.2", nil)
	require.NoError(t, err)
	require.False(t, newer)

	newer, err = IsNewer("1.2.0.0.0", "Widget v1.3", nil)
	require.NoError(t, err)
	require.True(t, newer)
}

// TestIsNewer_StripsQualifierAndTags verifies cleanup of the installed version and the release name.
func TestIsNewer_StripsQualifierAndTags(t *testing.T) {
	t.Parallel()

	tags, _ := NewSkipTags("-SNAPSHOT", "-dev")

	newer, err := IsNewer("1.0.0-SNAPSHOT", "Widget v1.0.1", tags)
	require.NoError(t, err)
	require.True(t, newer)

	newer, err = IsNewer("1.0.0", "Widget-dev v1.0.0", tags)
	require.NoError(t, err)
	require.False(t, newer)
}

// TestIsNewer_NameUnparseable rejects names without a trailing version.
func TestIsNewer_NameUnparseable(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"Widget", "Widget v1.0.0 final", "Widget-v1.0.0", "Widget v"} {
		_, err := IsNewer("1.0.0", name, nil)
		require.ErrorIs(t, err, ErrNameUnparseable, name)
	}
}

// TestIsNewer_MalformedInstalled reports an installed version whose segments are not all integers.
func TestIsNewer_MalformedInstalled(t *testing.T) {
	t.Parallel()

	for _, installed := range []string{"dev", "", "1.0.0beta", "1.0.0rc1", "1.0+build5", "v1.0", "1..0", "1.0."} {
		newer, err := IsNewer(installed, "Widget v1.0.0", nil)
		require.ErrorIs(t, err, ErrMalformedVersion, installed)
		require.False(t, newer, installed)
	}
}

// TestExtractVersion returns the trailing digits of a release name.
func TestExtractVersion(t *testing.T) {
	t.Parallel()

	got, err := ExtractVersion("Widget v1.4.2", nil)
	require.NoError(t, err)
	require.Equal(t, "1.4.2", got)

	_, err = ExtractVersion("Widget", nil)
	require.ErrorIs(t, err, ErrNameUnparseable)
}
