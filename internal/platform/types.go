// Package platform works out which engine build the host can run.
//
// OS and architecture come from the Go runtime. On Linux the C library
// matters as well: musl hosts need the musl builds. The distribution is read
// with gopsutil; when that fails the presence of the musl dynamic loader
// decides. The result is also exposed to the Lua settings file as a
// read-only "platform" table.
package platform

import "context"

// C libraries a Linux engine build can be linked against.
const (
	LibcGlibc = "glibc"
	LibcMusl  = "musl"
)

// Info describes the host.
type Info struct {
	OS      string // GOOS
	Arch    string // "amd64", "arm64", "386", or the raw value when unknown
	ArchRaw string

	// Linux only.
	Distro        string // distribution ID, e.g. "ubuntu", "alpine"
	DistroVersion string
	Libc          string
}

// Key returns the "os-arch" identifier used to select an engine build,
// e.g. "darwin-arm64".
func (i *Info) Key() string {
	return i.OS + "-" + i.Arch
}

func (i *Info) IsLinux() bool   { return i.OS == "linux" }
func (i *Info) IsMacOS() bool   { return i.OS == "darwin" }
func (i *Info) IsWindows() bool { return i.OS == "windows" }

// Musl reports whether the host is a musl Linux, such as Alpine.
func (i *Info) Musl() bool {
	return i.IsLinux() && i.Libc == LibcMusl
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}

// StaticDetector returns a fixed Info. Used when the platform is already
// known (tests, or a host that reports it explicitly).
type StaticDetector struct {
	Info *Info
}

// Detect returns the configured Info.
func (s StaticDetector) Detect(ctx context.Context) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Info, nil
}
