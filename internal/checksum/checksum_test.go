package checksum

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFileHash_KnownValue checks a stable lowercase 32-char digest for known bytes.
func TestFileHash_KnownValue(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "artifact.jar")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o600))

	first, err := FileHash(path)
	require.NoError(t, err)
	require.Equal(t, "5eb63bbbe01eeed093cb22bb8f5acdc3", first)
	require.Len(t, first, 32)
	require.Equal(t, strings.ToLower(first), first)

	second, err := FileHash(path)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

// TestReaderHash_Empty covers the digest of no bytes.
func TestReaderHash_Empty(t *testing.T) {
	t.Parallel()

	got, err := ReaderHash(bytes.NewReader(nil))
	require.NoError(t, err)
	require.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", got)
}

// TestFileHash_Missing reports an error for a file that does not exist.
func TestFileHash_Missing(t *testing.T) {
	t.Parallel()

	_, err := FileHash(filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestVerify compares digests case-insensitively.
func TestVerify(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "artifact.jar")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o600))

	ok, actual, err := Verify(path, "5EB63BBBE01EEED093CB22BB8F5ACDC3")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "5eb63bbbe01eeed093cb22bb8f5acdc3", actual)

	ok, _, err = Verify(path, "00000000000000000000000000000000")
	require.NoError(t, err)
	require.False(t, ok)
}
