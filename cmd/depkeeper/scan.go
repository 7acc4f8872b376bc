package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/depkeeper/internal/runner"
)

// scanTask names the engine run started by scan. Starting a new scan
// replaces a running one.
const scanTask = "scan"

func newScanCmd(a *app) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "scan [targets...]",
		Short: "Make sure the engine is installed, then run a scan",
		Long: `Run the engine's test command against the given targets, or the working
directory when none are given. The engine is installed or updated first;
the scan starts as soon as it is ready.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			mgr, err := a.newManager()
			if err != nil {
				return err
			}
			path, err := mgr.ExecutablePath(ctx)
			if err != nil {
				return err
			}
			engineArgs, err := runner.BuildArgs([]string{"test"}, args, a.settings.Advanced.AdditionalParameters)
			if err != nil {
				return err
			}

			activated := make(chan error, 1)
			go func() {
				_, err := mgr.DownloadOrUpdate(ctx, nil)
				activated <- err
			}()

			r := runner.New(runner.Config{
				Ready:  mgr.Ready(),
				Env:    a.environment,
				Logger: a.logger,
			})
			res, spawnErr := r.Spawn(ctx, runner.SpawnRequest{
				Task: scanTask,
				Path: path,
				Dir:  dir,
				Args: engineArgs,
			})

			if err := <-activated; err != nil {
				return fmt.Errorf("prepare engine: %w", err)
			}
			if spawnErr != nil {
				var exitErr *runner.ExitError
				if errors.As(spawnErr, &exitErr) {
					fmt.Fprint(a.out, exitErr.Output)
				}
				return spawnErr
			}

			fmt.Fprint(a.out, res.Output)
			a.logger.Debug("scan finished", "code", res.ExitCode, "duration", res.Duration)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "working directory for the engine")
	return cmd
}
