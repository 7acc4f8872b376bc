package binary

import (
	"errors"
	"fmt"
)

// Executable describes an engine build that passed verification.
type Executable struct {
	Platform string // "os-arch" key the build was selected for
	Version  string // release version without the "v" prefix
	Path     string
	Checksum string // lowercase hex SHA-256
}

// Progress is one progress report from a download.
type Progress struct {
	// Increment is the number of percentage points completed since the
	// previous report. Increments over a finished download sum to 100.
	Increment int
	// Indeterminate is set when the server did not announce a length.
	Indeterminate bool
	Received      int64
	Total         int64 // 0 when unknown
}

// ProgressFunc receives download progress. It is called from the
// downloading goroutine and must not block for long.
type ProgressFunc func(Progress)

var (
	// ErrIntegrityCheckFailed indicates the downloaded bytes do not hash to
	// the published checksum.
	ErrIntegrityCheckFailed = errors.New("integrity check failed")

	// ErrUnsupportedPlatform indicates no engine build exists for the host.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrChecksumFinalized is returned when data is written to a Checksum
	// after Digest.
	ErrChecksumFinalized = errors.New("checksum already finalized")

	// ErrInvalidVersion is returned for version strings that are not
	// MAJOR.MINOR.PATCH.
	ErrInvalidVersion = errors.New("invalid version")

	// ErrSignatureInvalid indicates a checksum file whose detached signature
	// does not verify against the configured keyring.
	ErrSignatureInvalid = errors.New("checksum signature invalid")
)

// IntegrityError reports a checksum mismatch for a downloaded file.
type IntegrityError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

func (e *IntegrityError) Unwrap() error {
	return ErrIntegrityCheckFailed
}

// UnsupportedPlatformError reports an OS/arch combination without a build.
type UnsupportedPlatformError struct {
	OS   string
	Arch string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform %s/%s", e.OS, e.Arch)
}

func (e *UnsupportedPlatformError) Unwrap() error {
	return ErrUnsupportedPlatform
}

// RemoteError reports an unexpected HTTP status from the release server.
type RemoteError struct {
	URL        string
	StatusCode int
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.StatusCode, e.URL)
}

// Temporary reports whether retrying the request could succeed.
func (e *RemoteError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
