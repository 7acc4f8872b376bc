package binary

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func sha(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestChecksum_ChunkingInvariance(t *testing.T) {
	data := []byte(strings.Repeat("depkeeper engine payload ", 200))
	want := sha(data)

	for _, chunk := range []int{1, 3, 64, 1000, len(data)} {
		c := NewChecksum(want)
		for i := 0; i < len(data); i += chunk {
			end := min(i+chunk, len(data))
			if err := c.Update(data[i:end]); err != nil {
				t.Fatalf("Update() error = %v", err)
			}
		}
		if got := c.Digest(); got != want {
			t.Errorf("chunk %d: Digest() = %s, want %s", chunk, got, want)
		}
		if !c.Verify() {
			t.Errorf("chunk %d: Verify() = false", chunk)
		}
	}
}

func TestChecksum_Verify(t *testing.T) {
	data := []byte("hello")
	digest := sha(data)

	tests := []struct {
		name     string
		expected string
		want     bool
	}{
		{"exact", digest, true},
		{"upper case", strings.ToUpper(digest), true},
		{"surrounding whitespace", " " + digest + "\n", true},
		{"different", sha([]byte("world")), false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecksum(tt.expected)
			c.Write(data)
			c.Digest()
			if got := c.Verify(); got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChecksum_VerifyBeforeDigestPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Verify() before Digest() should panic")
		}
	}()
	NewChecksum("abc").Verify()
}

func TestChecksum_DigestIsIdempotent(t *testing.T) {
	c := NewChecksum("")
	c.Write([]byte("a"))
	first := c.Digest()

	if _, err := c.Write([]byte("b")); !errors.Is(err, ErrChecksumFinalized) {
		t.Errorf("Write after Digest error = %v, want ErrChecksumFinalized", err)
	}
	if second := c.Digest(); second != first {
		t.Errorf("second Digest() = %s, want %s", second, first)
	}
	if !c.Finalized() {
		t.Error("Finalized() = false after Digest")
	}
}

func TestChecksumFile(t *testing.T) {
	data := []byte("engine bytes")
	path := filepath.Join(t.TempDir(), "engine")
	if err := os.WriteFile(path, data, 0o755); err != nil {
		t.Fatal(err)
	}

	c, err := ChecksumFile(path, sha(data))
	if err != nil {
		t.Fatalf("ChecksumFile() error = %v", err)
	}
	if !c.Verify() {
		t.Errorf("Verify() = false, digest %s", c.Digest())
	}

	if _, err := ChecksumFile(filepath.Join(t.TempDir(), "missing"), ""); err == nil {
		t.Error("ChecksumFile() on missing file should fail")
	}
}

func TestChecksumFromDigest(t *testing.T) {
	c := ChecksumFromDigest("ABCDEF", "abcdef")
	if c.Digest() != "abcdef" {
		t.Errorf("Digest() = %s, want lowercased", c.Digest())
	}
	if !c.Verify() {
		t.Error("Verify() = false for matching known digest")
	}
	if ChecksumFromDigest("abcdef", "123456").Verify() {
		t.Error("Verify() = true for different digests")
	}
}
