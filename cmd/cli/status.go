package main

import (
	"context"
	"fmt"
	"io"

	"github.com/dnmos/weba/internal/period"
	"github.com/dnmos/weba/internal/pipeline"
	"github.com/spf13/cobra"
)

type periodLister interface {
	DiscoverPeriods(ctx context.Context) ([]pipeline.Candidate, error)
	IsProcessed(ctx context.Context, p period.Period) bool
}

func newStatusCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List discovered periods and whether each is processed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd.OutOrStdout(), pipeline.New(e.cfg, nil), e.cfg.MinPeriod)
		},
	}
}

func runStatus(ctx context.Context, w io.Writer, src periodLister, minPeriod period.Period) error {
	candidates, err := src.DiscoverPeriods(ctx)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		_, _ = fmt.Fprintln(w, "No periods discovered")
		return nil
	}
	for _, c := range candidates {
		state := "pending"
		switch {
		case c.Period.Before(minPeriod):
			state = "below minimum"
		case src.IsProcessed(ctx, c.Period):
			state = "processed"
		}
		_, _ = fmt.Fprintf(w, "%s  %s\n", c.Period, state)
	}
	return nil
}
