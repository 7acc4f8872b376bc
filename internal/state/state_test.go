package state

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"file": func(t *testing.T) Store {
			return NewFileStore(filepath.Join(t.TempDir(), "nested", "state.toml"))
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)

			if _, ok, err := s.Get("depkeeper.lastUpdate"); err != nil || ok {
				t.Fatalf("Get() on empty store = ok %v, err %v", ok, err)
			}

			if err := s.Set("depkeeper.lastUpdate", "2026-01-02T03:04:05Z"); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if err := s.Set("depkeeper.lastChecksum", "abc"); err != nil {
				t.Fatalf("Set() error = %v", err)
			}

			v, ok, err := s.Get("depkeeper.lastUpdate")
			if err != nil || !ok || v != "2026-01-02T03:04:05Z" {
				t.Errorf("Get() = %q, %v, %v", v, ok, err)
			}

			if err := s.Set("depkeeper.lastChecksum", ""); err != nil {
				t.Fatalf("Set(empty) error = %v", err)
			}
			if _, ok, _ := s.Get("depkeeper.lastChecksum"); ok {
				t.Error("empty Set should delete the key")
			}
		})
	}
}

func TestFileStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.toml")

	if err := NewFileStore(path).Set("depkeeper.lastVersion", "1.2.3"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	reopened := NewFileStore(path)
	v, ok, err := reopened.Get("depkeeper.lastVersion")
	if err != nil || !ok || v != "1.2.3" {
		t.Fatalf("Get() after reopen = %q, %v, %v", v, ok, err)
	}

	keys, err := reopened.Keys()
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != "depkeeper.lastVersion" {
		t.Errorf("Keys() = %v", keys)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}

	blob, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(blob), "version = 1") {
		t.Errorf("state file missing version:\n%s", blob)
	}
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.toml")
	if err := os.WriteFile(path, []byte("values = ["), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, _, err := NewFileStore(path).Get("x"); err == nil {
		t.Fatal("Get() on corrupt file should fail")
	}
}

func TestFileStore_UnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.toml")
	if err := os.WriteFile(path, []byte("version = 9\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, _, err := NewFileStore(path).Get("x")
	if err == nil || !strings.Contains(err.Error(), "unsupported state version 9") {
		t.Fatalf("Get() error = %v", err)
	}
}
