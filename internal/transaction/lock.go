package transaction

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/shirou/gopsutil/v4/process"
)

const (
	// LockFileName is the lock taken around engine install and update.
	LockFileName = "update.lock"

	// StaleLockThreshold is the age after which a lock is reclaimed even if
	// its holder cannot be identified.
	StaleLockThreshold = 10 * time.Minute

	// DefaultPollInterval is how often WaitLock retries a held lock.
	DefaultPollInterval = 250 * time.Millisecond
)

// ErrLockExists means another live process holds the update lock.
var ErrLockExists = errors.New("update lock exists: another depkeeper process may be installing the engine")

// Holder is the content of a lock file.
type Holder struct {
	PID      int       `toml:"pid"`
	Acquired time.Time `toml:"acquired"`
}

// Lock is a held update lock.
type Lock struct {
	path string
	file *os.File
}

// AcquireLock takes the update lock in dir without waiting. A lock left by
// a process that no longer runs, or older than StaleLockThreshold, is
// reclaimed.
func AcquireLock(ctx context.Context, dir string) (*Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	path := filepath.Join(dir, LockFileName)
	file, err := createExclusive(path)
	if errors.Is(err, os.ErrExist) {
		if !stale(ctx, path) {
			return nil, ErrLockExists
		}
		os.Remove(path)
		file, err = createExclusive(path)
		if errors.Is(err, os.ErrExist) {
			return nil, ErrLockExists
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create lock file: %w", err)
	}

	data, err := toml.Marshal(Holder{PID: os.Getpid(), Acquired: time.Now().UTC().Truncate(time.Second)})
	if err == nil {
		_, err = file.Write(data)
	}
	if err == nil {
		err = file.Sync()
	}
	if err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write lock file: %w", err)
	}

	return &Lock{path: path, file: file}, nil
}

// WaitLock takes the update lock in dir, polling every interval while
// another process holds it. It gives up when ctx is done.
func WaitLock(ctx context.Context, dir string, interval time.Duration) (*Lock, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		lock, err := AcquireLock(ctx, dir)
		if !errors.Is(err, ErrLockExists) {
			return lock, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// CurrentHolder returns the live holder of the update lock in dir, or nil if
// the lock is free or stale.
func CurrentHolder(ctx context.Context, dir string) (*Holder, error) {
	path := filepath.Join(dir, LockFileName)
	h, err := readHolder(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if stale(ctx, path) {
		return nil, nil
	}
	return h, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release removes the lock. It is safe to call more than once.
func (l *Lock) Release() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	if l.path == "" {
		return nil
	}
	path := l.path
	l.path = ""
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}

func createExclusive(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
}

func readHolder(path string) (*Holder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var h Holder
	if err := toml.NewDecoder(bytes.NewReader(data)).Decode(&h); err != nil {
		return nil, fmt.Errorf("parse lock file: %w", err)
	}
	return &h, nil
}

// stale reports whether the lock at path can be reclaimed: its holder is
// gone, or it cannot be read and is older than StaleLockThreshold.
func stale(ctx context.Context, path string) bool {
	if h, err := readHolder(path); err == nil && h.PID > 0 {
		alive, err := process.PidExistsWithContext(ctx, int32(h.PID))
		if err == nil {
			return !alive
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return errors.Is(err, os.ErrNotExist)
	}
	return time.Since(info.ModTime()) > StaleLockThreshold
}
