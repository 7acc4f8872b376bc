package binary

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ZebulonRouseFrantzich/depkeeper/internal/clock"
	"github.com/ZebulonRouseFrantzich/depkeeper/internal/config"
	"github.com/ZebulonRouseFrantzich/depkeeper/internal/platform"
	"github.com/ZebulonRouseFrantzich/depkeeper/internal/state"
	"github.com/ZebulonRouseFrantzich/depkeeper/internal/transaction"
)

// Store keys holding the install record.
const (
	KeyLastUpdate   = "depkeeper.lastUpdate"
	KeyLastChecksum = "depkeeper.lastChecksum"
	KeyLastVersion  = "depkeeper.lastVersion"
)

// Manager decides on each activation whether the engine has to be
// downloaded or updated, and records what it installed.
//
// The engine counts as installed only when the file exists and both the
// update timestamp and the checksum are recorded. An install that was cut
// short (see package transaction) also counts as not installed.
type Manager struct {
	installDir string
	cliPath    string
	automatic  bool
	interval   time.Duration
	lockPoll   time.Duration

	detector   platform.Detector
	store      state.Store
	releases   ReleaseSource
	downloader *Downloader
	clock      clock.Clock
	logger     config.Logger
	ready      *Ready

	mu   sync.Mutex
	info *platform.Info
}

// Config holds configuration for the engine manager
type Config struct {
	// InstallDir holds the engine, the update lock and the journal.
	InstallDir string
	// Settings supplies the update policy. Nil selects
	// config.DefaultSettings.
	Settings *config.Settings

	Store state.Store

	// Optional collaborators. Nil values get production defaults; Releases
	// is then built from Settings.Release.
	Detector   platform.Detector
	Releases   ReleaseSource
	Downloader *Downloader
	Clock      clock.Clock
	Logger     config.Logger
	Ready      *Ready

	// LockPollInterval is how often a held update lock is retried.
	LockPollInterval time.Duration
}

// NewManager creates a new engine manager
func NewManager(cfg Config) (*Manager, error) {
	if cfg.InstallDir == "" {
		return nil, fmt.Errorf("InstallDir is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("Store is required")
	}

	settings := config.DefaultSettings()
	if cfg.Settings != nil {
		settings = *cfg.Settings
	}
	logger := config.OrNop(cfg.Logger)

	m := &Manager{
		installDir: cfg.InstallDir,
		cliPath:    settings.Advanced.CliPath,
		automatic:  settings.Advanced.AutomaticDependencyManagement,
		interval:   settings.UpdateInterval(),
		lockPoll:   cfg.LockPollInterval,
		detector:   cfg.Detector,
		store:      cfg.Store,
		releases:   cfg.Releases,
		downloader: cfg.Downloader,
		clock:      cfg.Clock,
		logger:     logger,
		ready:      cfg.Ready,
	}

	if m.detector == nil {
		m.detector = platform.NewDetector()
	}
	if m.clock == nil {
		m.clock = clock.RealClock{}
	}
	if m.ready == nil {
		m.ready = NewReady()
	}
	if m.downloader == nil {
		m.downloader = NewDownloader(DownloaderConfig{Logger: logger})
	}
	if m.releases == nil {
		rc := ReleaseConfig{
			BaseURL: settings.Release.BaseURL,
			Channel: settings.Release.Channel,
			Logger:  logger,
		}
		if settings.Release.Keyring != "" {
			keyring, err := LoadKeyring(settings.Release.Keyring)
			if err != nil {
				return nil, fmt.Errorf("load release keyring: %w", err)
			}
			rc.Keyring = keyring
		}
		client, err := NewReleaseClient(rc)
		if err != nil {
			return nil, fmt.Errorf("create release client: %w", err)
		}
		m.releases = client
	}

	return m, nil
}

// Ready returns the signal fired when DownloadOrUpdate finishes.
func (m *Manager) Ready() *Ready {
	return m.ready
}

// InstallDir returns the directory managed engines are written to.
func (m *Manager) InstallDir() string {
	return m.installDir
}

// Platform detects the host platform once and caches the result.
func (m *Manager) Platform(ctx context.Context) (*platform.Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.info != nil {
		return m.info, nil
	}
	info, err := m.detector.Detect(ctx)
	if err != nil {
		return nil, fmt.Errorf("detect platform: %w", err)
	}
	m.info = info
	return info, nil
}

// ExecutablePath returns where the engine lives on this host.
func (m *Manager) ExecutablePath(ctx context.Context) (string, error) {
	if m.cliPath != "" {
		return m.cliPath, nil
	}
	info, err := m.Platform(ctx)
	if err != nil {
		return "", err
	}
	return ExecutablePath(m.installDir, "", info)
}

// IsInstalled reports whether the engine is installed.
func (m *Manager) IsInstalled(ctx context.Context) (bool, error) {
	path, err := m.ExecutablePath(ctx)
	if err != nil {
		return false, err
	}
	return m.installedAt(path)
}

func (m *Manager) installedAt(path string) (bool, error) {
	if !Exists(path) {
		return false, nil
	}
	for _, key := range []string{KeyLastUpdate, KeyLastChecksum} {
		if _, ok, err := m.store.Get(key); err != nil || !ok {
			return false, err
		}
	}

	journal, err := transaction.Load(m.installDir)
	if err != nil {
		return false, err
	}
	if journal != nil && journal.Interrupted() {
		m.logger.Warn("previous engine install did not finish, reinstalling",
			"journal", journal.ID,
			"operation", journal.Operation,
			"started", journal.Timestamp)
		return false, nil
	}
	return true, nil
}

// DownloadOrUpdate installs the engine when it is missing and refreshes it
// when the update interval has elapsed and a different build is published.
// It reports whether a new engine was written.
//
// The ready signal fires when it returns, whatever the outcome. Failures
// reaching the release server during a routine update, whether checking or
// downloading, are logged and swallowed while the installed engine is still
// on disk. Integrity failures always propagate. Cancellation returns false
// with a nil error.
func (m *Manager) DownloadOrUpdate(ctx context.Context, progress ProgressFunc) (updated bool, err error) {
	defer m.ready.Fire()

	if !m.automatic {
		m.logger.Info("automatic dependency management disabled, not checking for engine updates")
		return false, nil
	}

	lock, err := transaction.WaitLock(ctx, m.installDir, m.lockPoll)
	if err != nil {
		if ctx.Err() != nil {
			return false, nil
		}
		return false, fmt.Errorf("acquire update lock: %w", err)
	}
	defer func() {
		if relErr := lock.Release(); relErr != nil {
			m.logger.Warn("failed to release update lock", "path", lock.Path(), "error", relErr)
		}
	}()

	info, err := m.Platform(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, nil
		}
		return false, err
	}
	file, err := ExecutableName(info)
	if err != nil {
		return false, err
	}
	path, err := ExecutablePath(m.installDir, m.cliPath, info)
	if err != nil {
		return false, err
	}

	installed, err := m.installedAt(path)
	if err != nil {
		return false, fmt.Errorf("check install state: %w", err)
	}

	if !installed {
		m.logger.Info("engine not installed, downloading", "file", file, "path", path)
		release, err := m.releases.Latest(ctx, file)
		if err != nil {
			if ctx.Err() != nil {
				return false, nil
			}
			return false, fmt.Errorf("resolve engine release: %w", err)
		}
		return m.apply(ctx, transaction.OperationInstall, info, release, path, progress)
	}

	if last, ok := m.lastUpdate(); ok && clock.Since(m.clock, last) < m.interval {
		m.logger.Debug("engine checked recently, skipping update check",
			"last_update", last, "interval", m.interval)
		return false, nil
	}

	release, err := m.releases.Latest(ctx, file)
	if err != nil {
		if ctx.Err() != nil {
			return false, nil
		}
		m.logger.Warn("engine update check failed, keeping installed engine", "error", err)
		return false, nil
	}

	current, err := ChecksumFile(path, release.Checksum)
	if err != nil {
		return false, fmt.Errorf("hash installed engine: %w", err)
	}
	if current.Verify() {
		m.logger.Debug("installed engine is the latest", "version", release.Version.String())
		return false, nil
	}

	m.logger.Info("engine update available", "version", release.Version.String(), "path", path)
	return m.apply(ctx, transaction.OperationUpdate, info, release, path, progress)
}

// apply downloads release to path under a journal and records it.
func (m *Manager) apply(ctx context.Context, op transaction.Operation, info *platform.Info, release *Release, path string, progress ProgressFunc) (bool, error) {
	journal, err := transaction.Begin(m.installDir, op, path, release.Version.String(), release.Checksum, m.clock.Now())
	if err != nil {
		return false, fmt.Errorf("begin %s journal: %w", op, err)
	}

	exe, err := m.downloader.Download(ctx, DownloadRequest{
		URL:      release.URL,
		Path:     path,
		Checksum: release.Checksum,
		Version:  release.Version.String(),
		Platform: info.Key(),
	}, progress)
	if err != nil {
		if errors.Is(err, ErrIntegrityCheckFailed) {
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				m.logger.Error("failed to remove unverified engine", "path", path, "error", rmErr)
			}
		}
		m.failJournal(journal, err)
		if op == transaction.OperationUpdate && !errors.Is(err, ErrIntegrityCheckFailed) && Exists(path) {
			m.logger.Warn("engine update download failed, keeping installed engine", "path", path, "error", err)
			return false, nil
		}
		return false, fmt.Errorf("download engine: %w", err)
	}
	if exe == nil {
		m.logger.Info("engine download cancelled", "path", path)
		m.failJournal(journal, context.Canceled)
		return false, nil
	}

	if err := m.persist(exe); err != nil {
		return false, fmt.Errorf("record engine install: %w", err)
	}
	if err := journal.Complete(); err != nil {
		m.logger.Warn("failed to remove install journal", "journal", journal.ID, "error", err)
	}

	m.logger.Info("engine ready", "operation", op, "version", exe.Version, "path", exe.Path)
	return true, nil
}

func (m *Manager) failJournal(journal *transaction.Journal, cause error) {
	if err := journal.SetState(transaction.StateFailed, cause); err != nil {
		m.logger.Warn("failed to update install journal", "journal", journal.ID, "error", err)
	}
}

// persist writes the install record. The timestamp goes last so a crash in
// between leaves the engine counted as not installed, and it never moves
// backwards.
func (m *Manager) persist(exe *Executable) error {
	now := m.clock.Now().UTC()
	if prev, ok := m.lastUpdate(); ok && prev.After(now) {
		now = prev
	}

	if err := m.store.Set(KeyLastChecksum, exe.Checksum); err != nil {
		return err
	}
	if err := m.store.Set(KeyLastVersion, exe.Version); err != nil {
		return err
	}
	return m.store.Set(KeyLastUpdate, now.Format(time.RFC3339))
}

// lastUpdate returns the recorded update time, if any and parseable.
func (m *Manager) lastUpdate() (time.Time, bool) {
	raw, ok, err := m.store.Get(KeyLastUpdate)
	if err != nil || !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		m.logger.Warn("ignoring unparseable update timestamp", "value", raw, "error", err)
		return time.Time{}, false
	}
	return t, true
}
