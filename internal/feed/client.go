package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/oshokin/artifact-updater/internal/domain/release"
	"github.com/oshokin/artifact-updater/internal/logger"
)

const (
	// filesPath is the feed endpoint listing the files of a project.
	filesPath = "/servermods/files"
	// projectIDsParam is the query parameter carrying the project id.
	projectIDsParam = "projectIds"
	// maxResponseSize bounds how much of a feed response is read.
	maxResponseSize = 16 << 20
)

var (
	// ErrFeedUnreachable is returned when the feed cannot be queried or answers non-200.
	ErrFeedUnreachable = errors.New("release feed unreachable")
	// ErrResponseUnparseable is returned when the feed body is not the expected JSON.
	ErrResponseUnparseable = errors.New("release feed response cannot be parsed")
)

// Client queries the release feed.
type Client struct {
	// baseURL is the scheme and host of the feed.
	baseURL *url.URL
	// userAgent is the fixed identifying agent string.
	userAgent string
	// httpClient performs the requests.
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for feed requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithTimeout bounds each feed request.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// NewClient creates a feed client for the given host.
func NewClient(host, userAgent string, opts ...Option) (*Client, error) {
	baseURL, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parse feed host: %w", err)
	}

	c := &Client{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// record is one element of the feed's JSON array.
type record struct {
	Name        string `json:"name"`
	ReleaseType string `json:"releaseType"`
	DownloadURL string `json:"downloadUrl"`
	FileName    string `json:"fileName"`
	MD5         string `json:"md5"`
}

// Fetch returns the releases of projectID in feed order, oldest first.
func (c *Client) Fetch(ctx context.Context, projectID int) ([]release.Entry, error) {
	target := c.projectURL(projectID)

	logger.DebugKV(ctx, "Querying release feed", "url", target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", target, ErrFeedUnreachable, err)
	}

	req.Header.Set("User-Agent", c.userAgent)

	response, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", target, ErrFeedUnreachable, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s, %s: %w", target, response.Status, ErrFeedUnreachable)
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w: %w", target, ErrFeedUnreachable, err)
	}

	entries, err := Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", target, err)
	}

	logger.DebugKV(ctx, "Release feed answered", "url", target, "entries", len(entries))

	return entries, nil
}

// Parse decodes a feed response body into entries, keeping their order.
func Parse(body []byte) ([]release.Entry, error) {
	var records []record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResponseUnparseable, err)
	}

	if records == nil {
		return nil, fmt.Errorf("body is not an array: %w", ErrResponseUnparseable)
	}

	entries := make([]release.Entry, 0, len(records))

	for i, r := range records {
		if err := r.validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}

		entries = append(entries, release.Entry{
			Name:        r.Name,
			Channel:     release.ParseChannel(r.ReleaseType),
			DownloadURL: r.DownloadURL,
			FileName:    r.FileName,
			ContentHash: r.MD5,
		})
	}

	return entries, nil
}

// validate checks that every field the updater relies on is present.
func (r *record) validate() error {
	missing := ""

	switch {
	case r.Name == "":
		missing = "name"
	case r.ReleaseType == "":
		missing = "releaseType"
	case r.DownloadURL == "":
		missing = "downloadUrl"
	case r.FileName == "":
		missing = "fileName"
	case r.MD5 == "":
		missing = "md5"
	}

	if missing != "" {
		return fmt.Errorf("missing %s: %w", missing, ErrResponseUnparseable)
	}

	return nil
}

// projectURL composes the files query for projectID.
func (c *Client) projectURL(projectID int) string {
	target := *c.baseURL
	// Use path.Join to normalize duplicate slashes when composing the URL path.
	target.Path = path.Join("/", target.Path, filesPath)

	query := target.Query()
	query.Set(projectIDsParam, strconv.Itoa(projectID))
	target.RawQuery = query.Encode()

	return target.String()
}
