package main

import (
	"fmt"
	"io"

	"github.com/dnmos/weba/internal/extract"
	"github.com/dnmos/weba/internal/pipeline"
	"github.com/spf13/cobra"
)

func newRunCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline for every period that is due",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := pipeline.New(e.cfg, nil).Run(cmd.Context())
			if report != nil {
				printReport(cmd.OutOrStdout(), report)
			}
			return err
		},
	}
}

func printReport(w io.Writer, report *pipeline.RunReport) {
	_, _ = fmt.Fprintf(w, "Run %s\n", report.RunID)
	if p := report.Payments; p != nil {
		_, _ = fmt.Fprintf(w, "Payments: %d fetched, %d tagged, %d dropped, %d malformed\n", p.Fetched, p.Tagged, p.Dropped, p.Malformed)
	}
	for _, r := range report.Periods {
		line := fmt.Sprintf("  %s  %s", r.Period, r.Status)
		if r.Reason != "" {
			line += fmt.Sprintf(" (%s)", r.Reason)
		}
		if r.Err != nil {
			line += ": " + r.Err.Error()
		}
		_, _ = fmt.Fprintln(w, line)
	}
	_, _ = fmt.Fprintf(w, "Completed: %d  Failed: %d  Skipped: %d\n",
		report.Count(pipeline.StatusCompleted),
		report.Count(pipeline.StatusFailed),
		report.Count(pipeline.StatusSkippedMin)+report.Count(pipeline.StatusSkippedDone),
	)
}

func newExtractPaymentsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "extract-payments",
		Short: "Fetch all payments and write one file per payout month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := extract.NewPaymentExtractor(e.client(), e.layout).Run(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, p := range res.Periods() {
				_, _ = fmt.Fprintln(w, res.Files[p])
			}
			return nil
		},
	}
}

func newExtractActionsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "extract-actions <payments.csv>",
		Short: "Fetch the actions of every payment in a monthly payments file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := extract.NewActionExtractor(e.client(), e.layout, e.cfg.TPO.ActionsLimit).Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%d actions, %d failed payments)\n", res.Path, res.Actions, res.Failed)
			return nil
		},
	}
}

func newExtractDetailsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "extract-details <payment_actions.csv>",
		Short: "Fetch the details of every action in a monthly actions file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := extract.NewDetailExtractor(e.client(), e.layout, e.cfg.TPO.Currency, e.cfg.TPO.DetailDelay).Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%d rows, %d failed, %d not found, profit %s)\n",
				res.Path, res.Rows, res.Failed, res.NotFound, res.Profit.StringFixed(2))
			return nil
		},
	}
}
