// Package binary keeps the analysis engine executable installed and
// verified.
//
// # Security Model
//
// An engine build is only trusted after its bytes hash to the SHA-256 digest
// published next to it on the release server. When a keyring is configured,
// the checksum file itself must carry a valid detached OpenPGP signature.
// A build that fails verification is removed and never recorded.
//
// # Layout on the release server
//
//	{base}/{channel}/version           plaintext version, e.g. "v1.1297.0"
//	{base}/v{version}/{file}           engine build
//	{base}/v{version}/{file}.sha256    "<hex digest>  <file>"
//	{base}/v{version}/{file}.sha256.asc
//
// File names depend on the platform; see ExecutableName.
//
// # Usage
//
//	mgr, err := binary.NewManager(binary.Config{
//	    InstallDir: dir,
//	    Settings:   settings,
//	    Store:      state.NewFileStore(statePath),
//	})
//	if err != nil {
//	    return err
//	}
//	updated, err := mgr.DownloadOrUpdate(ctx, func(p binary.Progress) { ... })
//
// # Architecture
//
//   - Manager: update policy (install, refresh, no-op) and the install record
//   - ReleaseClient: version and checksum metadata, with retries
//   - Downloader: streams a build to disk while hashing it
//   - Checksum: incremental SHA-256 with case-insensitive comparison
//   - Ready: one-shot signal consumers wait on before the first run
package binary
