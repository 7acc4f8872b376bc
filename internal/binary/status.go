package binary

import (
	"context"
	"time"

	"github.com/ZebulonRouseFrantzich/depkeeper/internal/transaction"
)

// Status describes the installed engine.
type Status struct {
	Platform   string `json:"platform" yaml:"platform"`
	Path       string `json:"path" yaml:"path"`
	Managed    bool   `json:"managed" yaml:"managed"`
	Installed  bool   `json:"installed" yaml:"installed"`
	FileExists bool   `json:"file_exists" yaml:"file_exists"`

	LastUpdate   *time.Time `json:"last_update,omitempty" yaml:"last_update,omitempty"`
	NextCheck    *time.Time `json:"next_check,omitempty" yaml:"next_check,omitempty"`
	LastChecksum string     `json:"last_checksum,omitempty" yaml:"last_checksum,omitempty"`
	LastVersion  string     `json:"last_version,omitempty" yaml:"last_version,omitempty"`

	// LastFailure is the error recorded by the most recent failed install
	// or update, if any.
	LastFailure string `json:"last_failure,omitempty" yaml:"last_failure,omitempty"`

	// UpdatingPID is the process currently holding the update lock.
	UpdatingPID int `json:"updating_pid,omitempty" yaml:"updating_pid,omitempty"`

	// Remote fields are filled when Status is asked to check the server.
	LatestVersion string `json:"latest_version,omitempty" yaml:"latest_version,omitempty"`
	IsLatest      *bool  `json:"is_latest,omitempty" yaml:"is_latest,omitempty"`
	RemoteError   string `json:"remote_error,omitempty" yaml:"remote_error,omitempty"`
}

// Status reports the install record. With checkRemote it also asks the
// release server for the newest version; failures there are reported in
// RemoteError rather than returned.
func (m *Manager) Status(ctx context.Context, checkRemote bool) (*Status, error) {
	info, err := m.Platform(ctx)
	if err != nil {
		return nil, err
	}
	path, err := ExecutablePath(m.installDir, m.cliPath, info)
	if err != nil {
		return nil, err
	}

	installed, err := m.installedAt(path)
	if err != nil {
		return nil, err
	}

	st := &Status{
		Platform:   info.Key(),
		Path:       path,
		Managed:    m.automatic,
		Installed:  installed,
		FileExists: Exists(path),
	}
	if last, ok := m.lastUpdate(); ok {
		next := last.Add(m.interval)
		st.LastUpdate = &last
		st.NextCheck = &next
	}
	if v, ok, err := m.store.Get(KeyLastChecksum); err == nil && ok {
		st.LastChecksum = v
	}
	if v, ok, err := m.store.Get(KeyLastVersion); err == nil && ok {
		st.LastVersion = v
	}
	if journal, err := transaction.Load(m.installDir); err == nil && journal != nil {
		st.LastFailure = journal.LastError
	}
	if holder, err := transaction.CurrentHolder(ctx, m.installDir); err == nil && holder != nil {
		st.UpdatingPID = holder.PID
	}

	if !checkRemote {
		return st, nil
	}

	latest, err := m.releases.LatestVersion(ctx)
	if err != nil {
		st.RemoteError = err.Error()
		return st, nil
	}
	st.LatestVersion = latest.String()

	if installedVersion, err := ParseCliVersion(st.LastVersion); err == nil && installed {
		isLatest := installedVersion.IsLatest(latest)
		st.IsLatest = &isLatest
	}
	return st, nil
}
