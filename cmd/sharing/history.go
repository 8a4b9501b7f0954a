package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/sharing-ingest/internal/cli"
	"github.com/Veraticus/sharing-ingest/internal/storage"
)

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded ingestion runs",
		Long:  `List recent ingestion runs, or show the details of one run by ID.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := initStorage(ctx, cfg.Database.Path)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			out := cmd.OutOrStdout()

			if len(args) == 1 {
				run, err := store.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %s (%s)\n", cli.BoldStyle.Render("Run"), run.ID, run.Status)
				fmt.Fprintf(out, "  Source:  %s\n", run.SourceURL)
				fmt.Fprintf(out, "  Started: %s\n", run.StartedAt.Local().Format(time.RFC3339))
				if run.Error != "" {
					fmt.Fprintln(out, cli.FormatError(run.Error))
				}
				if run.Artifact != nil {
					fmt.Fprintln(out, cli.RenderArtifact(run.Artifact, run.Duration()))
				}
				return nil
			}

			runs, err := store.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, cli.RenderHistory(runs, time.Now()))
			return err
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", storage.DefaultListLimit, "maximum number of runs to list")

	return cmd
}
