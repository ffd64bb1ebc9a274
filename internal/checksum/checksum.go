package checksum

import (
	"crypto"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	// Ensure MD5 is registered for the feed's content hashes.
	_ "crypto/md5"
)

// DefaultFunction is the digest the release feed publishes.
const DefaultFunction crypto.Hash = crypto.MD5

var errHashUnavailable = errors.New("hash function unavailable")

// FileHash returns the lowercase hex digest of the file at path.
func FileHash(path string) (string, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = file.Close()
	}()

	return ReaderHash(file)
}

// ReaderHash returns the lowercase hex digest of everything read from r.
func ReaderHash(r io.Reader) (string, error) {
	if !DefaultFunction.Available() {
		return "", fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := DefaultFunction.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", fmt.Errorf("calculate checksum: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Equal compares two hex digests ignoring case and surrounding whitespace.
func Equal(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Verify hashes the file at path and reports whether it matches expected.
// The computed digest is returned either way for logging.
func Verify(path, expected string) (bool, string, error) {
	actual, err := FileHash(path)
	if err != nil {
		return false, "", err
	}

	return Equal(actual, expected), actual, nil
}
