package platform

import (
	"context"
	"errors"
	"runtime"
	"testing"
)

func fakeDetector(goos, goarch, distro string, distroErr error, muslLoader bool) *RealDetector {
	return &RealDetector{
		goos:   goos,
		goarch: goarch,
		distro: func(ctx context.Context) (string, string, string, error) {
			if distroErr != nil {
				return "", "", "", distroErr
			}
			return distro, "", " 3.20 ", nil
		},
		glob: func(pattern string) ([]string, error) {
			if muslLoader {
				return []string{"/lib/ld-musl-x86_64.so.1"}, nil
			}
			return nil, nil
		},
	}
}

func TestRealDetector_Detect(t *testing.T) {
	info, err := NewDetector().Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if info.OS != runtime.GOOS {
		t.Errorf("OS = %v, want %v", info.OS, runtime.GOOS)
	}
	if info.ArchRaw != runtime.GOARCH {
		t.Errorf("ArchRaw = %v, want %v", info.ArchRaw, runtime.GOARCH)
	}
	if runtime.GOOS == "linux" && info.Libc == "" {
		t.Error("Libc not set on linux")
	}
	if runtime.GOOS != "linux" && (info.Distro != "" || info.Libc != "") {
		t.Errorf("linux-only fields set on %s: %+v", runtime.GOOS, info)
	}
}

func TestRealDetector_Variants(t *testing.T) {
	distroErr := errors.New("no os-release")

	tests := []struct {
		name       string
		d          *RealDetector
		wantArch   string
		wantDistro string
		wantLibc   string
	}{
		{"ubuntu", fakeDetector("linux", "amd64", "Ubuntu", nil, false), "amd64", "ubuntu", LibcGlibc},
		{"alpine", fakeDetector("linux", "arm64", "alpine", nil, false), "arm64", "alpine", LibcMusl},
		{"musl loader without distro", fakeDetector("linux", "amd64", "", distroErr, true), "amd64", "", LibcMusl},
		{"unknown distro glibc", fakeDetector("linux", "386", "", distroErr, false), "386", "", LibcGlibc},
		{"darwin skips linux probes", fakeDetector("darwin", "arm64", "alpine", nil, true), "arm64", "", ""},
		{"unknown arch passes through", fakeDetector("linux", "riscv64", "debian", nil, false), "riscv64", "debian", LibcGlibc},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := tt.d.Detect(context.Background())
			if err != nil {
				t.Fatalf("Detect() error = %v", err)
			}
			if info.Arch != tt.wantArch {
				t.Errorf("Arch = %q, want %q", info.Arch, tt.wantArch)
			}
			if info.Distro != tt.wantDistro {
				t.Errorf("Distro = %q, want %q", info.Distro, tt.wantDistro)
			}
			if info.Libc != tt.wantLibc {
				t.Errorf("Libc = %q, want %q", info.Libc, tt.wantLibc)
			}
			if tt.wantDistro != "" && info.DistroVersion != "3.20" {
				t.Errorf("DistroVersion = %q, want 3.20", info.DistroVersion)
			}
		})
	}
}

func TestRealDetector_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := fakeDetector("linux", "amd64", "", context.Canceled, false)
	info, err := d.Detect(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Detect() error = %v, want context.Canceled", err)
	}
	if info != nil {
		t.Errorf("Detect() info = %+v alongside error", info)
	}
}

func TestNormalizeArch(t *testing.T) {
	for in, want := range map[string]string{
		"amd64":   "amd64",
		"x86_64":  "amd64",
		"AARCH64": "arm64",
		"i686":    "386",
		"arm":     "arm",
		"":        "",
	} {
		if got := normalizeArch(in); got != want {
			t.Errorf("normalizeArch(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInfo(t *testing.T) {
	tests := []struct {
		info                  *Info
		key                   string
		linux, macos, windows bool
		musl                  bool
	}{
		{&Info{OS: "linux", Arch: "amd64", Libc: LibcGlibc}, "linux-amd64", true, false, false, false},
		{&Info{OS: "linux", Arch: "arm64", Libc: LibcMusl}, "linux-arm64", true, false, false, true},
		{&Info{OS: "darwin", Arch: "arm64", Libc: LibcMusl}, "darwin-arm64", false, true, false, false},
		{&Info{OS: "windows", Arch: "386"}, "windows-386", false, false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := tt.info.Key(); got != tt.key {
				t.Errorf("Key() = %q, want %q", got, tt.key)
			}
			if tt.info.IsLinux() != tt.linux || tt.info.IsMacOS() != tt.macos || tt.info.IsWindows() != tt.windows {
				t.Errorf("OS predicates wrong for %+v", tt.info)
			}
			if got := tt.info.Musl(); got != tt.musl {
				t.Errorf("Musl() = %v, want %v", got, tt.musl)
			}
		})
	}
}

func TestStaticDetector(t *testing.T) {
	want := &Info{OS: "linux", Arch: "amd64"}
	got, err := StaticDetector{Info: want}.Detect(context.Background())
	if err != nil || got != want {
		t.Errorf("Detect() = %v, %v", got, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (StaticDetector{Info: want}).Detect(ctx); err == nil {
		t.Error("Detect() with cancelled context error = nil")
	}
}
