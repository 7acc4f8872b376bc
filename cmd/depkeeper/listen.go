package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/depkeeper/internal/notify"
)

// Notification methods the engine sends while it runs.
const (
	methodLogMessage = "window/logMessage"
	methodProgress   = "$/progress"
	methodScan       = "depkeeper/scan"
)

type logMessageParams struct {
	Type    int    `json:"type"`
	Message string `json:"message"`
}

type progressParams struct {
	Token string `json:"token"`
	Value struct {
		Kind       string `json:"kind"`
		Message    string `json:"message,omitempty"`
		Percentage int    `json:"percentage,omitempty"`
	} `json:"value"`
}

type scanParams struct {
	Product    string `json:"product"`
	Status     string `json:"status"`
	FolderPath string `json:"folderPath"`
	Issues     []struct {
		ID       string `json:"id"`
		Title    string `json:"title"`
		Severity string `json:"severity"`
	} `json:"issues"`
}

func newListenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Read engine notifications from stdin and report them in order",
		Long: `Read newline-delimited JSON notifications ({"method": ..., "params": ...})
from stdin and handle them one at a time, in arrival order, until EOF.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			seq := notify.NewSequencer(ctx, a.logger)
			defer seq.Stop()

			d := notify.NewDispatcher(a.registry(), seq, a.logger)
			return notify.Pump(ctx, cmd.InOrStdin(), d)
		},
	}
}

func (a *app) registry() *notify.Registry {
	reg := notify.NewRegistry()

	notify.Handle(reg, methodLogMessage, func(ctx context.Context, p logMessageParams) error {
		// LSP message types: 1 error, 2 warning, 3 info, 4 log.
		switch p.Type {
		case 1:
			a.logger.Error(p.Message, "source", "engine")
		case 2:
			a.logger.Warn(p.Message, "source", "engine")
		case 3:
			a.logger.Info(p.Message, "source", "engine")
		default:
			a.logger.Debug(p.Message, "source", "engine")
		}
		return nil
	})

	notify.Handle(reg, methodProgress, func(ctx context.Context, p progressParams) error {
		a.logger.Debug("engine progress", "token", p.Token, "kind", p.Value.Kind,
			"percentage", p.Value.Percentage, "message", p.Value.Message)
		return nil
	})

	notify.Handle(reg, methodScan, func(ctx context.Context, p scanParams) error {
		if p.Product == "" {
			return fmt.Errorf("scan notification without product")
		}
		switch p.Status {
		case "inProgress":
			fmt.Fprintf(a.out, "%s: scanning %s\n", p.Product, p.FolderPath)
		case "success":
			printer.Fprintf(a.out, "%s: %s: %d issues\n", p.Product, p.FolderPath, len(p.Issues))
			for _, issue := range p.Issues {
				fmt.Fprintf(a.out, "  [%s] %s %s\n", issue.Severity, issue.ID, issue.Title)
			}
		case "error":
			fmt.Fprintf(a.out, "%s: %s: scan failed\n", p.Product, p.FolderPath)
		default:
			return fmt.Errorf("unknown scan status %q", p.Status)
		}
		return nil
	})

	return reg
}
