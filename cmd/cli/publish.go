package main

import (
	"errors"
	"fmt"

	"github.com/dnmos/weba/internal/export"
	"github.com/dnmos/weba/internal/gcsuploader"
	infraBQ "github.com/dnmos/weba/internal/infra/bigquery"
	"github.com/dnmos/weba/internal/period"
	"github.com/spf13/cobra"
)

func periodArg(args []string) (period.Period, error) {
	return period.Parse(args[0])
}

func newExportCmd(e *env) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export-xlsx <period>",
		Short: "Write a period's stage files into one XLSX workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := periodArg(args)
			if err != nil {
				return err
			}
			path, err := export.WritePeriod(cmd.Context(), e.layout, p, out)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output path (default <data>/exports/tpo_<period>.xlsx)")
	return cmd
}

func newUploadCmd(e *env) *cobra.Command {
	var (
		bucket    string
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:   "upload <period>",
		Short: "Copy a processed period's stage files to Cloud Storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := periodArg(args)
			if err != nil {
				return err
			}
			if bucket == "" {
				bucket = e.cfg.Storage.Bucket
			}
			if bucket == "" {
				return errors.New("bucket is required (--bucket or GCS_BUCKET)")
			}

			ctx := cmd.Context()
			svc, err := gcsuploader.NewGCSStorageService(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			uris, err := gcsuploader.NewPeriodUploader(svc, e.layout, e.ledger).UploadPeriod(ctx, bucket, p, overwrite)
			if err != nil {
				return err
			}
			for _, uri := range uris {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), uri)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&bucket, "bucket", "", "target bucket (default GCS_BUCKET)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace objects that already exist")
	return cmd
}

func bigQueryRepo(cmd *cobra.Command, e *env) (*infraBQ.BigQueryPeriodRepository, error) {
	return infraBQ.NewBigQueryPeriodRepository(cmd.Context(), e.cfg.Storage.BQProject, e.cfg.Storage.BQDataset, e.layout, e.ledger)
}

func newBQLoadCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "bq-load <period>",
		Short: "Load a processed period's stage files into BigQuery",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := periodArg(args)
			if err != nil {
				return err
			}
			repo, err := bigQueryRepo(cmd, e)
			if err != nil {
				return err
			}
			defer repo.Close()

			results, err := repo.LoadPeriod(cmd.Context(), p)
			if err != nil {
				return err
			}
			for _, r := range results {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %d rows  job %s\n", r.Table, r.Rows, r.JobID)
			}
			return nil
		},
	}
}

func newBQTablesCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "bq-tables",
		Short: "List the stage tables in the BigQuery dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := bigQueryRepo(cmd, e)
			if err != nil {
				return err
			}
			defer repo.Close()

			tables, err := repo.ListTables(cmd.Context())
			if err != nil {
				return err
			}
			for _, t := range tables {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", t.Period, t.Stage, t.TableID)
			}
			return nil
		},
	}
}

func newBQSummaryCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "bq-summary <period>",
		Short: "Show action count and total profit of a loaded period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := periodArg(args)
			if err != nil {
				return err
			}
			repo, err := bigQueryRepo(cmd, e)
			if err != nil {
				return err
			}
			defer repo.Close()

			s, err := repo.Summary(cmd.Context(), p)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %d actions  profit %s\n", s.Period, s.Actions, s.Profit.StringFixed(2))
			return nil
		},
	}
}
