package platform

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/host"
)

// archAliases maps GOARCH and uname spellings to engine architecture names.
var archAliases = map[string]string{
	"amd64":   "amd64",
	"x86_64":  "amd64",
	"arm64":   "arm64",
	"aarch64": "arm64",
	"386":     "386",
	"i386":    "386",
	"i686":    "386",
}

// muslDistros ship musl as their only C library.
var muslDistros = map[string]bool{
	"alpine":       true,
	"postmarketos": true,
	"chimera":      true,
}

// muslLoaderPattern matches the musl dynamic loader, e.g.
// /lib/ld-musl-x86_64.so.1.
const muslLoaderPattern = "/lib/ld-musl-*.so.1"

// RealDetector inspects the running host.
type RealDetector struct {
	goos, goarch string
	distro       func(ctx context.Context) (id, family, version string, err error)
	glob         func(pattern string) ([]string, error)
}

// NewDetector creates a new platform detector.
func NewDetector() Detector {
	return &RealDetector{
		goos:   runtime.GOOS,
		goarch: runtime.GOARCH,
		distro: host.PlatformInformationWithContext,
		glob:   filepath.Glob,
	}
}

// Detect returns the host's Info.
//
// Unknown architectures pass through unchanged so the engine locator can
// reject them with a typed error. A failed distribution lookup is not an
// error; a cancelled context is.
func (d *RealDetector) Detect(ctx context.Context) (*Info, error) {
	info := &Info{
		OS:      d.goos,
		Arch:    normalizeArch(d.goarch),
		ArchRaw: d.goarch,
	}
	if !info.IsLinux() {
		return info, nil
	}

	id, _, version, err := d.distro(ctx)
	if err != nil && ctx.Err() != nil {
		return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
	}
	if err == nil {
		info.Distro = strings.ToLower(strings.TrimSpace(id))
		info.DistroVersion = strings.TrimSpace(version)
	}

	info.Libc = LibcGlibc
	if muslDistros[info.Distro] || d.hasMuslLoader() {
		info.Libc = LibcMusl
	}
	return info, nil
}

func (d *RealDetector) hasMuslLoader() bool {
	matches, err := d.glob(muslLoaderPattern)
	return err == nil && len(matches) > 0
}

func normalizeArch(arch string) string {
	if canonical, ok := archAliases[strings.ToLower(arch)]; ok {
		return canonical
	}
	return arch
}
