package installer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/oshokin/artifact-updater/internal/checksum"
	"github.com/oshokin/artifact-updater/internal/domain/release"
	"github.com/oshokin/artifact-updater/internal/logger"
)

const (
	// interstitialMarker is the exact first line of an "Object moved" page.
	interstitialMarker = "<html><head><title>Object moved</title></head><body>"
	// interstitialLinkStart precedes the real location.
	interstitialLinkStart = `<a href="`
	// interstitialLinkEnd follows the real location.
	interstitialLinkEnd = `">here</a>.</h2></body></html>`
	// maxInterstitialSize is the largest staged file inspected for a redirect.
	// Interstitial pages are a few hundred bytes.
	maxInterstitialSize = 64 << 10
)

// fetchVerified downloads the entry and checks its digest, following HTML
// interstitials until the content matches or the redirect limit is reached.
func (i *Installer) fetchVerified(ctx context.Context, entry release.Entry) (string, error) {
	for hop := 0; ; hop++ {
		staged, err := i.download(ctx, entry.DownloadURL, entry.FileName)
		if err != nil {
			return "", err
		}

		matches, actual, err := checksum.Verify(staged, entry.ContentHash)
		if err != nil {
			return "", fmt.Errorf("hash staged file: %w", err)
		}

		if matches {
			logger.DebugKV(ctx, "Checksum verified", "md5", actual)
			return staged, nil
		}

		location, isInterstitial, err := readInterstitial(staged)
		if err != nil {
			return "", err
		}

		if isInterstitial {
			if hop >= i.maxRedirects {
				return "", fmt.Errorf("%s after %d hops: %w", entry.DownloadURL, hop, errTooManyRedirects)
			}

			logger.InfoKV(ctx, "Following interstitial redirect", "from", entry.DownloadURL, "to", location)

			entry = entry.WithDownloadURL(location)

			continue
		}

		if i.strictChecksum {
			return "", fmt.Errorf("%s: expected %s, got %s: %w",
				entry.FileName, entry.ContentHash, actual, errChecksumMismatch)
		}

		logger.WarnKV(ctx, "Checksum mismatch tolerated",
			"file", entry.FileName, "expected", entry.ContentHash, "actual", actual)

		return staged, nil
	}
}

// download stores rawURL under the staging directory, replacing any earlier file of the same name.
func (i *Installer) download(ctx context.Context, rawURL, fileName string) (string, error) {
	name := filepath.Base(filepath.Clean(fileName))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return "", fmt.Errorf("%q: %w", fileName, errInvalidFileName)
	}

	if err := os.MkdirAll(i.stagingDir, DefaultDirMode); err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}

	target := filepath.Join(i.stagingDir, name)
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("remove previous download: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return "", err
	}

	if i.userAgent != "" {
		req.Header.Set("User-Agent", i.userAgent)
	}

	response, err := i.httpClient.Do(req)
	if err != nil {
		return "", err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s, %s: %w", rawURL, response.Status, errBadHTTPStatus)
	}

	outputFile, err := os.Create(target)
	if err != nil {
		return "", err
	}

	written, err := io.Copy(outputFile, response.Body)
	if err != nil {
		_ = outputFile.Close()
		return "", err
	}

	if err = outputFile.Close(); err != nil {
		return "", err
	}

	logger.InfoKV(ctx, "Downloaded file", "path", target, "bytes", written)

	return target, nil
}

// readInterstitial reports whether the staged file is an "Object moved" page
// and returns the location it points at. Files that are not valid UTF-8 text
// are never interstitials.
func readInterstitial(path string) (string, bool, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", false, err
	}

	defer func() {
		_ = file.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(file, maxInterstitialSize+1))
	if err != nil {
		return "", false, err
	}

	if len(data) > maxInterstitialSize || !utf8.Valid(data) {
		return "", false, nil
	}

	location, ok := parseInterstitial(data)

	return location, ok, nil
}

// parseInterstitial extracts the target of an "Object moved" page.
func parseInterstitial(data []byte) (string, bool) {
	var (
		scanner = bufio.NewScanner(bytes.NewReader(data))
		content strings.Builder
		first   = true
	)

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if first && line != interstitialMarker {
			return "", false
		}

		first = false

		content.WriteString(line)
	}

	if first {
		return "", false
	}

	_, afterStart, found := strings.Cut(content.String(), interstitialLinkStart)
	if !found {
		return "", false
	}

	location, _, found := strings.Cut(afterStart, interstitialLinkEnd)
	if !found || location == "" {
		return "", false
	}

	return html.UnescapeString(location), true
}
