package binary

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
)

func engineServer(t *testing.T, body []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("User-Agent") == "" {
			t.Errorf("missing User-Agent")
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func TestDownloader_Download(t *testing.T) {
	body := []byte(strings.Repeat("engine", 1000))
	server, _ := engineServer(t, body)

	target := filepath.Join(t.TempDir(), "nested", "dir", "engine-linux")
	d := NewDownloader(DownloaderConfig{HTTPClient: server.Client()})

	exe, err := d.Download(context.Background(), DownloadRequest{
		URL:      server.URL + "/v1.0.0/engine-linux",
		Path:     target,
		Checksum: sha(body),
		Version:  "1.0.0",
		Platform: "linux-amd64",
	}, nil)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if exe == nil {
		t.Fatal("Download() returned nil executable")
	}

	if exe.Path != target || exe.Version != "1.0.0" || exe.Platform != "linux-amd64" || exe.Checksum != sha(body) {
		t.Errorf("Executable = %+v", exe)
	}

	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(body) {
		t.Error("downloaded content mismatch")
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(target)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm()&0o100 == 0 {
			t.Errorf("mode = %v, want owner executable", info.Mode())
		}
	}
}

func TestDownloader_ProgressSumsTo100(t *testing.T) {
	body := []byte(strings.Repeat("x", 997))
	server, _ := engineServer(t, body)

	for _, chunk := range []int{1, 7, 100, 333, 997, 4096} {
		t.Run(strconv.Itoa(chunk), func(t *testing.T) {
			d := NewDownloader(DownloaderConfig{HTTPClient: server.Client(), ChunkSize: chunk})

			var sum int
			var reports int
			_, err := d.Download(context.Background(), DownloadRequest{
				URL:      server.URL,
				Path:     filepath.Join(t.TempDir(), "engine"),
				Checksum: sha(body),
			}, func(p Progress) {
				reports++
				if p.Increment <= 0 {
					t.Errorf("non-positive increment %d", p.Increment)
				}
				if p.Indeterminate {
					t.Error("unexpected indeterminate progress")
				}
				sum += p.Increment
			})
			if err != nil {
				t.Fatalf("Download() error = %v", err)
			}
			if sum != 100 {
				t.Errorf("increments sum to %d, want 100", sum)
			}
			if reports > 100 {
				t.Errorf("%d reports, want at most 100", reports)
			}
		})
	}
}

func TestDownloader_IndeterminateProgress(t *testing.T) {
	body := []byte(strings.Repeat("y", 2048))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Flushing before the body is complete forces chunked encoding,
		// so the client sees no Content-Length.
		w.Write(body[:1024])
		w.(http.Flusher).Flush()
		w.Write(body[1024:])
	}))
	defer server.Close()

	d := NewDownloader(DownloaderConfig{HTTPClient: server.Client()})

	var last Progress
	var reports int
	exe, err := d.Download(context.Background(), DownloadRequest{
		URL:      server.URL,
		Path:     filepath.Join(t.TempDir(), "engine"),
		Checksum: sha(body),
	}, func(p Progress) {
		reports++
		if !p.Indeterminate || p.Increment != 0 {
			t.Errorf("progress = %+v, want indeterminate", p)
		}
		last = p
	})
	if err != nil || exe == nil {
		t.Fatalf("Download() = %v, %v", exe, err)
	}
	if reports == 0 || last.Received != int64(len(body)) {
		t.Errorf("reports = %d, last = %+v", reports, last)
	}
}

func TestDownloader_IntegrityFailure(t *testing.T) {
	body := []byte("tampered engine")
	server, _ := engineServer(t, body)

	d := NewDownloader(DownloaderConfig{HTTPClient: server.Client()})
	target := filepath.Join(t.TempDir(), "engine")
	expected := sha([]byte("genuine engine"))

	exe, err := d.Download(context.Background(), DownloadRequest{URL: server.URL, Path: target, Checksum: expected}, nil)
	if exe != nil {
		t.Error("no executable may be produced on mismatch")
	}
	if !errors.Is(err, ErrIntegrityCheckFailed) {
		t.Fatalf("Download() error = %v, want ErrIntegrityCheckFailed", err)
	}
	var integrityErr *IntegrityError
	if !errors.As(err, &integrityErr) {
		t.Fatalf("error %T is not *IntegrityError", err)
	}
	if integrityErr.Expected != expected || integrityErr.Actual != sha(body) {
		t.Errorf("IntegrityError = %+v", integrityErr)
	}
}

func TestDownloader_KeepsExistingFileOnHTTPError(t *testing.T) {
	codes := []int{http.StatusNotFound, http.StatusTooManyRequests, http.StatusServiceUnavailable}

	for _, code := range codes {
		t.Run(strconv.Itoa(code), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(code)
			}))
			defer server.Close()

			target := filepath.Join(t.TempDir(), "engine")
			old := []byte("old trusted engine")
			if err := os.WriteFile(target, old, 0o755); err != nil {
				t.Fatal(err)
			}

			d := NewDownloader(DownloaderConfig{HTTPClient: server.Client()})
			_, err := d.Download(context.Background(), DownloadRequest{URL: server.URL, Path: target, Checksum: testDigest}, nil)

			var remoteErr *RemoteError
			if !errors.As(err, &remoteErr) || remoteErr.StatusCode != code {
				t.Fatalf("Download() error = %v, want %d RemoteError", err, code)
			}
			got, err := os.ReadFile(target)
			if err != nil || string(got) != string(old) {
				t.Errorf("existing file = %q, %v; want it untouched", got, err)
			}
		})
	}
}

func TestDownloader_ReplacesExistingFile(t *testing.T) {
	body := []byte("engine build 2")
	server, _ := engineServer(t, body)

	target := filepath.Join(t.TempDir(), "engine")
	if err := os.WriteFile(target, []byte("engine build 1 with a longer body"), 0o755); err != nil {
		t.Fatal(err)
	}

	d := NewDownloader(DownloaderConfig{HTTPClient: server.Client()})
	if _, err := d.Download(context.Background(), DownloadRequest{URL: server.URL, Path: target, Checksum: sha(body)}, nil); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	got, err := os.ReadFile(target)
	if err != nil || string(got) != string(body) {
		t.Errorf("file = %q, %v; want %q", got, err, body)
	}
}

func TestDownloader_CancelledBeforeTransfer(t *testing.T) {
	server, hits := engineServer(t, []byte("engine"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	target := filepath.Join(t.TempDir(), "engine")
	d := NewDownloader(DownloaderConfig{HTTPClient: server.Client()})
	exe, err := d.Download(ctx, DownloadRequest{URL: server.URL, Path: target, Checksum: testDigest}, nil)
	if exe != nil || err != nil {
		t.Fatalf("Download() = %v, %v; want nil, nil", exe, err)
	}
	if hits.Load() != 0 {
		t.Errorf("server hit %d times, want 0", hits.Load())
	}
	if Exists(target) {
		t.Error("no file should be created")
	}
}

func TestDownloader_CancelledDuringTransfer(t *testing.T) {
	body := []byte(strings.Repeat("z", 4096))
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Write(body[:2048])
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	target := filepath.Join(t.TempDir(), "engine")
	d := NewDownloader(DownloaderConfig{HTTPClient: server.Client(), ChunkSize: 512})

	exe, err := d.Download(ctx, DownloadRequest{URL: server.URL, Path: target, Checksum: sha(body)}, func(p Progress) {
		cancel()
	})
	if exe != nil || err != nil {
		t.Fatalf("Download() = %v, %v; want nil, nil", exe, err)
	}
	if _, statErr := os.Stat(target); !os.IsNotExist(statErr) {
		t.Errorf("partial file left at target: %v", statErr)
	}
}

func TestDownloader_RequiresURLAndPath(t *testing.T) {
	d := NewDownloader(DownloaderConfig{})
	if _, err := d.Download(context.Background(), DownloadRequest{Path: "x"}, nil); err == nil {
		t.Error("missing URL should fail")
	}
	if _, err := d.Download(context.Background(), DownloadRequest{URL: "http://x"}, nil); err == nil {
		t.Error("missing path should fail")
	}
}
