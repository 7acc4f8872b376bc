package binary

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// Checksum is an incremental SHA-256 computation compared against an
// expected hex digest. It implements io.Writer so it can sit behind an
// io.MultiWriter while a file streams to disk.
type Checksum struct {
	hash     hash.Hash
	expected string
	computed string
	final    bool
}

// NewChecksum starts a checksum that will be compared against expected.
func NewChecksum(expected string) *Checksum {
	return &Checksum{
		hash:     sha256.New(),
		expected: strings.TrimSpace(expected),
	}
}

// ChecksumFromDigest builds a finalized Checksum from a digest that is
// already known, without hashing anything.
func ChecksumFromDigest(digest, expected string) *Checksum {
	return &Checksum{
		expected: strings.TrimSpace(expected),
		computed: strings.ToLower(strings.TrimSpace(digest)),
		final:    true,
	}
}

// ChecksumFile hashes the file at path and returns the finalized Checksum.
func ChecksumFile(path, expected string) (*Checksum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	c := NewChecksum(expected)
	if _, err := io.Copy(c, f); err != nil {
		return nil, fmt.Errorf("hash %s: %w", path, err)
	}
	c.Digest()
	return c, nil
}

// Write feeds p into the hash.
func (c *Checksum) Write(p []byte) (int, error) {
	if c.final {
		return 0, ErrChecksumFinalized
	}
	return c.hash.Write(p)
}

// Update feeds one chunk into the hash.
func (c *Checksum) Update(p []byte) error {
	_, err := c.Write(p)
	return err
}

// Digest finalizes the hash and returns the lowercase hex digest. Later
// calls return the same value.
func (c *Checksum) Digest() string {
	if !c.final {
		c.computed = hex.EncodeToString(c.hash.Sum(nil))
		c.final = true
	}
	return c.computed
}

// Expected returns the digest the checksum is compared against.
func (c *Checksum) Expected() string {
	return c.expected
}

// Finalized reports whether Digest has been called.
func (c *Checksum) Finalized() bool {
	return c.final
}

// Verify reports whether the computed digest equals the expected one,
// ignoring case. It panics if Digest has not been called.
func (c *Checksum) Verify() bool {
	if !c.final {
		panic("binary: Checksum.Verify called before Digest")
	}
	return c.expected != "" && strings.EqualFold(c.computed, c.expected)
}
