package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ZebulonRouseFrantzich/depkeeper/internal/binary"
)

var printer = message.NewPrinter(language.English)

func newActivateCmd(a *app) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "activate",
		Short: "Install or update the engine if needed",
		Long: `Install the engine if it is missing, or check for a newer build once the
update interval has passed. A failed update check keeps the installed engine.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.newManager()
			if err != nil {
				return err
			}

			var progress binary.ProgressFunc
			if !quiet {
				progress = newProgressPrinter(a.errOut)
			}

			updated, err := mgr.DownloadOrUpdate(cmd.Context(), progress)
			if err != nil {
				return err
			}
			if err := cmd.Context().Err(); err != nil {
				return err
			}

			path, err := mgr.ExecutablePath(cmd.Context())
			if err != nil {
				return err
			}
			if updated {
				fmt.Fprintf(a.out, "engine installed: %s\n", path)
			} else {
				fmt.Fprintf(a.out, "engine up to date: %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not report download progress")
	return cmd
}

// newProgressPrinter returns a ProgressFunc that keeps one status line
// updated on w.
func newProgressPrinter(w io.Writer) binary.ProgressFunc {
	percent := 0
	return func(p binary.Progress) {
		if p.Indeterminate {
			printer.Fprintf(w, "\rdownloading engine: %d bytes", p.Received)
			return
		}
		percent += p.Increment
		printer.Fprintf(w, "\rdownloading engine: %3d%% (%d of %d bytes)", percent, p.Received, p.Total)
		if percent >= 100 {
			fmt.Fprintln(w)
		}
	}
}
