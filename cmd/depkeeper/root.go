package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ZebulonRouseFrantzich/depkeeper/internal/binary"
	"github.com/ZebulonRouseFrantzich/depkeeper/internal/config"
	"github.com/ZebulonRouseFrantzich/depkeeper/internal/platform"
	"github.com/ZebulonRouseFrantzich/depkeeper/internal/runner"
	"github.com/ZebulonRouseFrantzich/depkeeper/internal/state"
)

// Environment and flag keys. Every key can also be set as DEPKEEPER_<KEY>
// with dashes turned into underscores.
const (
	envPrefix = "DEPKEEPER"

	keyConfig     = "config"
	keyInstallDir = "install-dir"
	keyStateFile  = "state-file"
	keyVerbose    = "verbose"

	// Settings overrides, environment only.
	keyToken    = "token"
	keyEndpoint = "endpoint"
	keyChannel  = "channel"
)

// app carries what every subcommand shares.
type app struct {
	v      *viper.Viper
	out    io.Writer
	errOut io.Writer

	logger   *slog.Logger
	settings *config.Settings

	// detector defaults to platform.NewDetector.
	detector platform.Detector
}

func newApp(out, errOut io.Writer) *app {
	return &app{v: viper.New(), out: out, errOut: errOut}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "depkeeper",
		Short: "Keep the analysis engine installed, verified and running",
		Long: `depkeeper downloads the analysis engine for this platform, verifies its
SHA-256 checksum before trusting it, keeps it up to date and runs it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.load(cmd.Context())
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	flags := root.PersistentFlags()
	flags.String(keyConfig, "", "settings file (default: <user config dir>/depkeeper/depkeeper.lua)")
	flags.String(keyInstallDir, "", "directory the engine is installed into")
	flags.String(keyStateFile, "", "file that records install state")
	flags.BoolP(keyVerbose, "v", false, "enable debug logging")

	for _, key := range []string{keyConfig, keyInstallDir, keyStateFile, keyVerbose} {
		_ = a.v.BindPFlag(key, flags.Lookup(key))
	}
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		newActivateCmd(a),
		newStatusCmd(a),
		newPathCmd(a),
		newScanCmd(a),
		newListenCmd(a),
		newVersionCmd(a),
	)
	return root
}

// load sets up logging and reads the settings file.
func (a *app) load(ctx context.Context) error {
	level := slog.LevelInfo
	if a.v.GetBool(keyVerbose) {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: level}))

	if a.detector == nil {
		a.detector = platform.NewDetector()
	}

	path, err := a.configPath()
	if err != nil {
		return err
	}
	a.logger.Debug("loading settings", "path", path)

	settings, err := config.NewParser(a.detector).WithLogger(a.logger).ParseFile(ctx, path)
	if err != nil {
		return errors.New(config.FormatError(err, a.v.GetBool(keyVerbose)))
	}

	if a.v.IsSet(keyToken) {
		settings.Token = a.v.GetString(keyToken)
	}
	if a.v.IsSet(keyEndpoint) {
		settings.Endpoint = a.v.GetString(keyEndpoint)
	}
	if a.v.IsSet(keyChannel) {
		settings.Release.Channel = a.v.GetString(keyChannel)
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	a.settings = settings
	return nil
}

func (a *app) configPath() (string, error) {
	if p := a.v.GetString(keyConfig); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get config directory: %w", err)
	}
	return filepath.Join(dir, "depkeeper", "depkeeper.lua"), nil
}

func (a *app) installDir() (string, error) {
	if p := a.v.GetString(keyInstallDir); p != "" {
		return p, nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("get cache directory: %w", err)
	}
	return filepath.Join(dir, "depkeeper", "engine"), nil
}

func (a *app) stateFile() (string, error) {
	if p := a.v.GetString(keyStateFile); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get config directory: %w", err)
	}
	return filepath.Join(dir, "depkeeper", "state.toml"), nil
}

func (a *app) newManager() (*binary.Manager, error) {
	installDir, err := a.installDir()
	if err != nil {
		return nil, err
	}
	stateFile, err := a.stateFile()
	if err != nil {
		return nil, err
	}

	return binary.NewManager(binary.Config{
		InstallDir: installDir,
		Settings:   a.settings,
		Store:      state.NewFileStore(stateFile),
		Detector:   a.detector,
		Logger:     a.logger,
	})
}

// environment is what the engine is told on every spawn.
func (a *app) environment() runner.Environment {
	return runner.Environment{
		IntegrationName:    a.settings.Advanced.IntegrationName,
		IntegrationVersion: strings.TrimPrefix(Version, "v"),
		Token:              a.settings.Token,
		Endpoint:           a.settings.Endpoint,
		DisableAnalytics:   a.settings.TelemetryDisabled(),
	}
}
