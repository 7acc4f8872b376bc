// Package testutil provides utilities for testing depkeeper in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Env holds the isolated paths set up by SetupTestEnv.
type Env struct {
	Root       string
	ConfigFile string
	InstallDir string
	StateFile  string
}

// SetupTestEnv points every depkeeper path at a fresh temporary directory so
// tests never touch a real engine install, state file or settings. It also
// clears the settings overrides read from the environment.
//
// The directories are removed by t.TempDir, so callers don't need to clean up.
func SetupTestEnv(t *testing.T) Env {
	t.Helper()

	root := t.TempDir()
	env := Env{
		Root:       root,
		ConfigFile: filepath.Join(root, "config", "depkeeper.lua"),
		InstallDir: filepath.Join(root, "engine"),
		StateFile:  filepath.Join(root, "config", "state.toml"),
	}

	t.Setenv("DEPKEEPER_CONFIG", env.ConfigFile)
	t.Setenv("DEPKEEPER_INSTALL_DIR", env.InstallDir)
	t.Setenv("DEPKEEPER_STATE_FILE", env.StateFile)

	// Keep user-level defaults inside the sandbox too.
	t.Setenv("HOME", filepath.Join(root, "home"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "xdg-config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(root, "xdg-cache"))

	for _, key := range []string{
		"DEPKEEPER_TOKEN",
		"DEPKEEPER_ENDPOINT",
		"DEPKEEPER_CHANNEL",
		"DEPKEEPER_VERBOSE",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	for _, dir := range []string{
		filepath.Dir(env.ConfigFile),
		filepath.Join(root, "home"),
	} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatalf("failed to create test directory %s: %v", dir, err)
		}
	}
	return env
}
