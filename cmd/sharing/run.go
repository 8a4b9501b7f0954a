package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/sharing-ingest/internal/cli"
	"github.com/Veraticus/sharing-ingest/internal/ingest"
	"github.com/Veraticus/sharing-ingest/internal/metrics"
)

func runCmd() *cobra.Command {
	var (
		sourceURL string
		noHistory bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, extract, and split the configured dataset",
		Long: `Download the source archive, unpack it into the raw data directory, and write
a stratified train/test split of the table it contains.

Every run resets the download and raw data directories.`,
		Example: `  # Run with the configured source
  sharing run

  # Override the source and print the artifact as JSON
  sharing run --source-url https://example.com/bike_sharing.tgz --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if sourceURL != "" {
				cfg.Ingestion.SourceURL = sourceURL
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			var progress io.Writer
			if cfg.Fetch.Progress && !asJSON {
				progress = cmd.ErrOrStderr()
			}
			pipeline, err := ingest.NewFromConfig(cfg, progress)
			if err != nil {
				return err
			}

			m := metrics.New()
			pipeline.WithMetrics(m)

			if !noHistory {
				store, err := initStorage(ctx, cfg.Database.Path)
				if err != nil {
					return err
				}
				defer func() { _ = store.Close() }()
				pipeline.WithRecorder(store)
			}

			start := time.Now()
			artifact, runErr := pipeline.Run(ctx)

			if cfg.Metrics.Textfile != "" {
				if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
					slog.Warn("Failed to write metrics textfile", "path", cfg.Metrics.Textfile, "error", err)
				}
			}

			if runErr != nil {
				return runErr
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(artifact)
			}
			_, err = fmt.Fprintln(out, cli.RenderArtifact(artifact, time.Since(start)))
			return err
		},
	}

	cmd.Flags().StringVar(&sourceURL, "source-url", "", "override ingestion.source_url")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record the run in the history database")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the artifact as JSON")

	return cmd
}
