// Package transaction guards engine installs and updates: an exclusive lock
// file keeps two depkeeper processes from writing the engine at once, and a
// journal records an install in progress so a crash mid-download is noticed
// on the next activation.
package transaction

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// JournalFileName is the journal written next to the engine.
const JournalFileName = "update.txn.json"

// State represents the progress of a journaled operation.
type State string

const (
	StatePending    State = "pending"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Operation is the kind of engine change being journaled.
type Operation string

const (
	OperationInstall Operation = "install"
	OperationUpdate  Operation = "update"
)

// Journal records one install or update of the engine.
type Journal struct {
	Version   int       `json:"version"` // Schema version for future evolution
	ID        string    `json:"id"`
	Operation Operation `json:"operation"`
	Timestamp time.Time `json:"timestamp"`
	State     State     `json:"state"`

	Path           string `json:"path"`
	TargetVersion  string `json:"target_version"`
	TargetChecksum string `json:"target_checksum"`
	LastError      string `json:"last_error,omitempty"`

	dir string
}

// Begin creates a pending journal for an operation on the engine at path,
// started at now, and saves it to dir.
func Begin(dir string, op Operation, path, version, checksum string, now time.Time) (*Journal, error) {
	j := &Journal{
		Version:        1,
		ID:             uuid.New().String(),
		Operation:      op,
		Timestamp:      now.UTC(),
		State:          StatePending,
		Path:           path,
		TargetVersion:  version,
		TargetChecksum: checksum,
		dir:            dir,
	}
	if err := j.Save(); err != nil {
		return nil, err
	}
	return j, nil
}

// Save writes the journal to disk atomically.
// Uses write-then-rename pattern for atomicity.
func (j *Journal) Save() error {
	if err := os.MkdirAll(j.dir, 0o700); err != nil {
		return fmt.Errorf("create journal directory: %w", err)
	}

	finalPath := filepath.Join(j.dir, JournalFileName)
	tmpPath := finalPath + ".tmp"

	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal journal: %w", err)
	}

	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("write temporary journal file: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename journal file: %w", err)
	}

	// Sync directory for durability
	df, err := os.Open(j.dir)
	if err == nil {
		if syncErr := df.Sync(); syncErr != nil {
			df.Close()
			return fmt.Errorf("sync directory: %w", syncErr)
		}
		df.Close()
	}

	return nil
}

// SetState records a state transition and saves the journal.
func (j *Journal) SetState(state State, cause error) error {
	j.State = state
	if cause != nil {
		j.LastError = cause.Error()
	} else {
		j.LastError = ""
	}
	return j.Save()
}

// Complete removes the journal once the operation's results are persisted.
func (j *Journal) Complete() error {
	j.State = StateCompleted
	err := os.Remove(filepath.Join(j.dir, JournalFileName))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove journal: %w", err)
	}
	return nil
}

// Interrupted reports whether the journal describes an operation that never
// finished.
func (j *Journal) Interrupted() bool {
	return j.State == StatePending || j.State == StateInProgress
}

// Load reads the journal left in dir. It returns nil, nil when there is none.
func Load(dir string) (*Journal, error) {
	data, err := os.ReadFile(filepath.Join(dir, JournalFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read journal file: %w", err)
	}

	var j Journal
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("unmarshal journal: %w", err)
	}
	j.dir = dir
	return &j, nil
}
