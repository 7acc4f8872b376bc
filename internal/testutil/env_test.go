package testutil_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZebulonRouseFrantzich/depkeeper/internal/testutil"
)

func TestSetupTestEnv(t *testing.T) {
	t.Setenv("DEPKEEPER_TOKEN", "real-token")

	env := testutil.SetupTestEnv(t)

	for key, want := range map[string]string{
		"DEPKEEPER_CONFIG":      env.ConfigFile,
		"DEPKEEPER_INSTALL_DIR": env.InstallDir,
		"DEPKEEPER_STATE_FILE":  env.StateFile,
	} {
		if got := os.Getenv(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}

	if _, ok := os.LookupEnv("DEPKEEPER_TOKEN"); ok {
		t.Error("DEPKEEPER_TOKEN still set")
	}

	for _, p := range []string{env.ConfigFile, env.InstallDir, env.StateFile, os.Getenv("HOME")} {
		if !strings.HasPrefix(p, env.Root) {
			t.Errorf("path %s is outside %s", p, env.Root)
		}
	}

	if _, err := os.Stat(filepath.Dir(env.ConfigFile)); err != nil {
		t.Errorf("config directory missing: %v", err)
	}
}

func TestSetupTestEnv_Isolation(t *testing.T) {
	var first string
	t.Run("first", func(t *testing.T) {
		first = testutil.SetupTestEnv(t).Root
	})
	t.Run("second", func(t *testing.T) {
		if second := testutil.SetupTestEnv(t).Root; second == first {
			t.Errorf("both runs got %s", second)
		}
	})
}
