package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/sharing-ingest/internal/cli"
	"github.com/Veraticus/sharing-ingest/internal/split"
)

func splitCmd() *cobra.Command {
	var reportPath string

	cmd := &cobra.Command{
		Use:   "split",
		Short: "Split the raw data directory without downloading",
		Long: `Read the single table in the raw data directory and write the stratified
train/test split. Useful when the raw data is already in place.`,
		Example: `  # Split and write the per-bucket balance report
  sharing split --report split_report.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateSplit(); err != nil {
				return err
			}

			splitter, err := split.New(cfg.Split)
			if err != nil {
				return err
			}

			start := time.Now()
			artifact, report, err := splitter.SplitWithReport(ctx,
				cfg.Ingestion.RawDataDir, cfg.Ingestion.TrainDir, cfg.Ingestion.TestDir)
			if err != nil {
				return err
			}
			report.Log(ctx)

			if reportPath != "" {
				if err := writeReport(reportPath, report); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintln(out, cli.RenderArtifact(artifact, time.Since(start))); err != nil {
				return err
			}
			if reportPath != "" {
				_, err = fmt.Fprintln(out, cli.FormatInfo("Bucket report written to "+reportPath))
			}
			return err
		},
	}

	cmd.Flags().StringVar(&reportPath, "report", "", "write the per-bucket split report as CSV")

	return cmd
}

func writeReport(path string, report *split.Report) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := report.WriteCSV(f); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
