// Package state persists small string facts between depkeeper runs.
//
// The host editor normally owns this storage. The CLI stands in for it with
// a TOML file written atomically (temp file plus rename), so a crash mid-write
// leaves either the old or the new document on disk.
package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// FileVersion is the schema version written to state files.
const FileVersion = 1

// Store gets and sets string values by key.
type Store interface {
	// Get returns the value for key and whether it was set.
	Get(key string) (string, bool, error)
	// Set stores value under key. An empty value deletes the key.
	Set(key, value string) error
}

// document is the on-disk layout of a FileStore.
type document struct {
	Version int               `toml:"version"`
	Values  map[string]string `toml:"values"`
}

// FileStore is a Store backed by a TOML file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store that reads and writes path. The file is
// created on the first Set.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Get implements Store.
func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := doc.Values[key]
	return v, ok, nil
}

// Set implements Store.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if value == "" {
		delete(doc.Values, key)
	} else {
		doc.Values[key] = value
	}
	return s.save(doc)
}

// Keys returns every stored key in sorted order.
func (s *FileStore) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(doc.Values))
	for k := range doc.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FileStore) load() (document, error) {
	doc := document{Version: FileVersion, Values: map[string]string{}}

	blob, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return doc, nil
		}
		return doc, fmt.Errorf("read state: %w", err)
	}
	if err := toml.Unmarshal(blob, &doc); err != nil {
		return doc, fmt.Errorf("parse state %s: %w", s.path, err)
	}
	if doc.Version == 0 {
		doc.Version = FileVersion
	}
	if doc.Version != FileVersion {
		return doc, fmt.Errorf("unsupported state version %d in %s", doc.Version, s.path)
	}
	if doc.Values == nil {
		doc.Values = map[string]string{}
	}
	return doc, nil
}

func (s *FileStore) save(doc document) error {
	doc.Version = FileVersion
	blob, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

// MemoryStore is an in-memory Store, safe for concurrent use.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]string{}}
}

// Get implements Store.
func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// Set implements Store.
func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value == "" {
		delete(m.values, key)
		return nil
	}
	m.values[key] = value
	return nil
}
