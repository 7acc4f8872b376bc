package binary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ZebulonRouseFrantzich/depkeeper/internal/config"
)

// defaultChunkSize is the read size used while streaming a download.
const defaultChunkSize = 32 << 10

// DownloaderConfig configures a Downloader.
type DownloaderConfig struct {
	HTTPClient *http.Client
	UserAgent  string
	Logger     config.Logger
	// ChunkSize overrides the read buffer size.
	ChunkSize int
}

// Downloader streams an engine build to disk while hashing it.
type Downloader struct {
	client    *http.Client
	userAgent string
	logger    config.Logger
	chunkSize int
}

// NewDownloader creates a new downloader
func NewDownloader(cfg DownloaderConfig) *Downloader {
	d := &Downloader{
		client:    cfg.HTTPClient,
		userAgent: cfg.UserAgent,
		logger:    config.OrNop(cfg.Logger),
		chunkSize: cfg.ChunkSize,
	}
	if d.client == nil {
		d.client = NewHTTPClient()
	}
	if d.userAgent == "" {
		d.userAgent = DefaultUserAgent
	}
	if d.chunkSize <= 0 {
		d.chunkSize = defaultChunkSize
	}
	return d
}

// DownloadRequest names what to fetch and where to put it.
type DownloadRequest struct {
	URL      string
	Path     string
	Checksum string // expected SHA-256 hex digest
	Version  string
	Platform string
}

// session is the transient state of one Download call.
type session struct {
	path        string
	checksum    *Checksum
	received    int64
	total       int64
	lastPercent int
	progress    ProgressFunc
}

// advance records n more bytes and reports the positive change in percent.
func (s *session) advance(n int) {
	s.received += int64(n)
	if s.progress == nil {
		return
	}

	if s.total <= 0 {
		s.progress(Progress{Indeterminate: true, Received: s.received})
		return
	}

	percent := int(s.received * 100 / s.total)
	if percent > 100 {
		percent = 100
	}
	if delta := percent - s.lastPercent; delta > 0 {
		s.lastPercent = percent
		s.progress(Progress{Increment: delta, Received: s.received, Total: s.total})
	}
}

// Download fetches req.URL into req.Path and verifies it against
// req.Checksum.
//
// A nil Executable with a nil error means ctx was cancelled; no partial file
// is left behind in that case. Any existing file at req.Path is removed once
// the server has answered 200 and before the body is written; a failed
// request leaves it untouched. On *IntegrityError the downloaded file is left
// in place for the caller to dispose of.
func (d *Downloader) Download(ctx context.Context, req DownloadRequest, progress ProgressFunc) (*Executable, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("download URL is required")
	}
	if req.Path == "" {
		return nil, fmt.Errorf("download path is required")
	}

	if ctx.Err() != nil {
		d.logger.Debug("download cancelled before transfer", "url", req.URL)
		return nil, nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteError{URL: req.URL, StatusCode: resp.StatusCode}
	}

	if err := os.Remove(req.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("remove existing executable: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(req.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create install dir: %w", err)
	}

	f, err := os.OpenFile(req.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return nil, fmt.Errorf("create executable: %w", err)
	}

	s := &session{
		path:     req.Path,
		checksum: NewChecksum(req.Checksum),
		total:    resp.ContentLength,
		progress: progress,
	}
	d.logger.Debug("downloading engine", "url", req.URL, "path", req.Path, "size", s.total)

	cancelled, err := d.stream(ctx, resp.Body, f, s)
	closeErr := f.Close()
	if cancelled || err != nil {
		os.Remove(req.Path)
		if cancelled {
			d.logger.Debug("download cancelled", "url", req.URL, "received", s.received)
			return nil, nil
		}
		return nil, err
	}
	if closeErr != nil {
		os.Remove(req.Path)
		return nil, fmt.Errorf("close executable: %w", closeErr)
	}

	digest := s.checksum.Digest()
	if !s.checksum.Verify() {
		return nil, &IntegrityError{Path: req.Path, Expected: s.checksum.Expected(), Actual: digest}
	}

	if err := os.Chmod(req.Path, 0o755); err != nil {
		return nil, fmt.Errorf("set executable: %w", err)
	}

	return &Executable{
		Platform: req.Platform,
		Version:  req.Version,
		Path:     req.Path,
		Checksum: digest,
	}, nil
}

// stream copies body into f chunk by chunk, feeding the checksum and
// progress. It reports cancelled=true when ctx ends the transfer.
func (d *Downloader) stream(ctx context.Context, body io.Reader, f *os.File, s *session) (cancelled bool, err error) {
	buf := make([]byte, d.chunkSize)
	for {
		if ctx.Err() != nil {
			return true, nil
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if _, err := f.Write(chunk); err != nil {
				return false, fmt.Errorf("write executable: %w", err)
			}
			if err := s.checksum.Update(chunk); err != nil {
				return false, err
			}
			s.advance(n)
		}

		if readErr == io.EOF {
			return false, nil
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return true, nil
			}
			return false, fmt.Errorf("read response body: %w", readErr)
		}
	}
}
