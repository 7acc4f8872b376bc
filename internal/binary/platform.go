package binary

import (
	"os"
	"path/filepath"

	"github.com/ZebulonRouseFrantzich/depkeeper/internal/platform"
)

// engineNames maps "os-arch" keys to published engine file names.
var engineNames = map[string]string{
	"darwin-amd64":  "engine-macos",
	"darwin-arm64":  "engine-macos-arm64",
	"linux-386":     "engine-linux-386",
	"linux-amd64":   "engine-linux",
	"linux-arm64":   "engine-linux-arm64",
	"windows-386":   "engine-win-386.exe",
	"windows-amd64": "engine-win.exe",
}

// muslNames holds the builds for musl hosts such as Alpine.
var muslNames = map[string]string{
	"linux-amd64": "engine-alpine",
	"linux-arm64": "engine-alpine-arm64",
}

// ExecutableName returns the engine file name published for the platform.
func ExecutableName(info *platform.Info) (string, error) {
	if info == nil {
		return "", &UnsupportedPlatformError{OS: "unknown", Arch: "unknown"}
	}

	if info.Musl() {
		if name, ok := muslNames[info.Key()]; ok {
			return name, nil
		}
	}

	name, ok := engineNames[info.Key()]
	if !ok {
		return "", &UnsupportedPlatformError{OS: info.OS, Arch: info.Arch}
	}
	return name, nil
}

// ExecutablePath returns the path the engine lives at. A non-empty override
// is returned as is, without validation.
func ExecutablePath(installDir, override string, info *platform.Info) (string, error) {
	if override != "" {
		return override, nil
	}
	name, err := ExecutableName(info)
	if err != nil {
		return "", err
	}
	return filepath.Join(installDir, name), nil
}

// Exists reports whether a regular file exists at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
