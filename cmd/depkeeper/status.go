package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/ZebulonRouseFrantzich/depkeeper/internal/binary"
)

func newStatusCmd(a *app) *cobra.Command {
	var (
		output  string
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the engine install state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.newManager()
			if err != nil {
				return err
			}
			st, err := mgr.Status(cmd.Context(), !offline)
			if err != nil {
				return err
			}
			return writeStatus(a.out, st, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	cmd.Flags().BoolVar(&offline, "offline", false, "do not ask the release server for the latest version")
	return cmd
}

func writeStatus(w io.Writer, st *binary.Status, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(st); err != nil {
			return fmt.Errorf("encode status: %w", err)
		}
		return enc.Close()
	case "text", "":
		writeStatusText(w, st)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

func writeStatusText(w io.Writer, st *binary.Status) {
	yesNo := func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	}

	fmt.Fprintf(w, "Platform:     %s\n", st.Platform)
	fmt.Fprintf(w, "Path:         %s\n", st.Path)
	fmt.Fprintf(w, "Managed:      %s\n", yesNo(st.Managed))
	fmt.Fprintf(w, "Installed:    %s\n", yesNo(st.Installed))
	if !st.Installed && st.FileExists {
		fmt.Fprintf(w, "              file present but install record incomplete\n")
	}
	if st.LastVersion != "" {
		fmt.Fprintf(w, "Version:      %s\n", st.LastVersion)
	}
	if st.LastChecksum != "" {
		fmt.Fprintf(w, "Checksum:     %s\n", st.LastChecksum)
	}
	if st.LastUpdate != nil {
		fmt.Fprintf(w, "Last update:  %s\n", st.LastUpdate.Local().Format(time.RFC1123))
	}
	if st.NextCheck != nil {
		fmt.Fprintf(w, "Next check:   %s\n", st.NextCheck.Local().Format(time.RFC1123))
	}
	if st.UpdatingPID != 0 {
		fmt.Fprintf(w, "Updating:     in progress (pid %d)\n", st.UpdatingPID)
	}
	if st.LastFailure != "" {
		fmt.Fprintf(w, "Last failure: %s\n", st.LastFailure)
	}

	switch {
	case st.RemoteError != "":
		fmt.Fprintf(w, "Latest:       unknown (%s)\n", st.RemoteError)
	case st.LatestVersion != "" && st.IsLatest != nil && *st.IsLatest:
		fmt.Fprintf(w, "Latest:       %s (up to date)\n", st.LatestVersion)
	case st.LatestVersion != "":
		fmt.Fprintf(w, "Latest:       %s (update available)\n", st.LatestVersion)
	}
}
