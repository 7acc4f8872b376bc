package binary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
	"github.com/ZebulonRouseFrantzich/depkeeper/internal/config"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 5 * time.Minute
	// DefaultRetries is the default number of metadata fetch retries
	DefaultRetries = 3
	// DefaultUserAgent is the User-Agent header sent with requests
	DefaultUserAgent = "depkeeper/1.0"
	// DefaultBackoff is the first retry delay; later retries double it
	DefaultBackoff = time.Second

	// maxMetadataSize bounds version, checksum and signature bodies.
	maxMetadataSize = 64 << 10
)

var (
	sha256Exact = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
	sha256Any   = regexp.MustCompile(`[0-9a-fA-F]{64}`)
)

// NewHTTPClient returns the HTTP client used for release traffic.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: DefaultTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
}

// Release is the newest engine build published for one file name.
type Release struct {
	Version  CliVersion
	File     string
	URL      string
	Checksum string
}

// ReleaseSource answers questions about published engine builds.
type ReleaseSource interface {
	LatestVersion(ctx context.Context) (CliVersion, error)
	Latest(ctx context.Context, file string) (*Release, error)
}

// ReleaseConfig configures a ReleaseClient.
type ReleaseConfig struct {
	// BaseURL is the root of the download server, without a trailing slash.
	BaseURL string
	// Channel selects the version pointer, e.g. "stable".
	Channel string

	HTTPClient *http.Client
	UserAgent  string

	// Retries is the number of retries for metadata requests. Zero selects
	// DefaultRetries; a negative value disables retrying.
	Retries int
	// Backoff is the delay before the first retry. Zero selects
	// DefaultBackoff.
	Backoff time.Duration

	// Keyring enables signature checks of checksum files when non-empty.
	Keyring openpgp.EntityList

	Logger config.Logger
}

// ReleaseClient reads release metadata from the download server:
//
//	{base}/{channel}/version
//	{base}/v{version}/{file}
//	{base}/v{version}/{file}.sha256
//	{base}/v{version}/{file}.sha256.asc
type ReleaseClient struct {
	client    *http.Client
	baseURL   string
	channel   string
	userAgent string
	retries   int
	backoff   time.Duration
	keyring   openpgp.EntityList
	logger    config.Logger
}

// NewReleaseClient creates a release client.
func NewReleaseClient(cfg ReleaseConfig) (*ReleaseClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("BaseURL is required")
	}
	if cfg.Channel == "" {
		return nil, fmt.Errorf("Channel is required")
	}

	c := &ReleaseClient{
		client:    cfg.HTTPClient,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		channel:   cfg.Channel,
		userAgent: cfg.UserAgent,
		retries:   cfg.Retries,
		backoff:   cfg.Backoff,
		keyring:   cfg.Keyring,
		logger:    config.OrNop(cfg.Logger),
	}
	if c.client == nil {
		c.client = NewHTTPClient()
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	switch {
	case c.retries == 0:
		c.retries = DefaultRetries
	case c.retries < 0:
		c.retries = 0
	}
	if c.backoff == 0 {
		c.backoff = DefaultBackoff
	}
	return c, nil
}

// VersionURL returns the URL of the channel's version pointer.
func (c *ReleaseClient) VersionURL() string {
	return fmt.Sprintf("%s/%s/version", c.baseURL, c.channel)
}

// BinaryURL returns the download URL of file at version.
func (c *ReleaseClient) BinaryURL(version CliVersion, file string) string {
	return fmt.Sprintf("%s/v%s/%s", c.baseURL, version, file)
}

// ChecksumURL returns the URL of the SHA-256 file for file at version.
func (c *ReleaseClient) ChecksumURL(version CliVersion, file string) string {
	return c.BinaryURL(version, file) + ".sha256"
}

// SignatureURL returns the URL of the detached signature over the checksum
// file.
func (c *ReleaseClient) SignatureURL(version CliVersion, file string) string {
	return c.ChecksumURL(version, file) + ".asc"
}

// LatestVersion returns the version the channel currently points at.
func (c *ReleaseClient) LatestVersion(ctx context.Context) (CliVersion, error) {
	body, err := c.fetch(ctx, c.VersionURL())
	if err != nil {
		return CliVersion{}, fmt.Errorf("fetch latest version: %w", err)
	}
	v, err := ParseCliVersion(string(body))
	if err != nil {
		return CliVersion{}, fmt.Errorf("parse latest version: %w", err)
	}
	return v, nil
}

// Checksum returns the published SHA-256 of file at version. When a keyring
// is configured the checksum file must carry a valid detached signature.
func (c *ReleaseClient) Checksum(ctx context.Context, version CliVersion, file string) (string, error) {
	body, err := c.fetch(ctx, c.ChecksumURL(version, file))
	if err != nil {
		return "", fmt.Errorf("fetch checksum: %w", err)
	}

	if len(c.keyring) > 0 {
		sig, err := c.fetch(ctx, c.SignatureURL(version, file))
		if err != nil {
			return "", fmt.Errorf("fetch checksum signature: %w", err)
		}
		if err := verifyDetachedSignature(c.keyring, body, sig); err != nil {
			return "", err
		}
		c.logger.Debug("checksum signature verified", "file", file, "version", version.String())
	}

	return parseChecksum(string(body), file)
}

// Latest resolves the newest release of file on the channel.
func (c *ReleaseClient) Latest(ctx context.Context, file string) (*Release, error) {
	version, err := c.LatestVersion(ctx)
	if err != nil {
		return nil, err
	}
	sum, err := c.Checksum(ctx, version, file)
	if err != nil {
		return nil, err
	}
	return &Release{
		Version:  version,
		File:     file,
		URL:      c.BinaryURL(version, file),
		Checksum: sum,
	}, nil
}

// fetch GETs a small metadata document, retrying transient failures with
// exponential backoff.
func (c *ReleaseClient) fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.retries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if attempt > 0 {
			backoff := c.backoff << uint(attempt-1)
			c.logger.Debug("retrying release request", "url", url, "attempt", attempt, "backoff", backoff, "error", lastErr)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		body, err := c.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var remoteErr *RemoteError
		if errors.As(err, &remoteErr) && !remoteErr.Temporary() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", c.retries, lastErr)
}

func (c *ReleaseClient) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataSize+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if len(body) > maxMetadataSize {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", url, maxMetadataSize)
	}
	return body, nil
}

// parseChecksum extracts the digest from a checksum file. The usual form is
// "<digest>  <file>"; anything else falls back to the first 64 hex chars.
func parseChecksum(body, file string) (string, error) {
	stripped := body
	if file != "" {
		stripped = strings.ReplaceAll(stripped, file, "")
	}
	stripped = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(stripped), "*"))
	if sha256Exact.MatchString(stripped) {
		return strings.ToLower(stripped), nil
	}

	if m := sha256Any.FindString(body); m != "" {
		return strings.ToLower(m), nil
	}
	return "", fmt.Errorf("no SHA-256 digest found in checksum file for %s", file)
}
