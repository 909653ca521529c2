package main

import (
	"context"

	"github.com/dnmos/weba/internal/artifacts"
	"github.com/dnmos/weba/internal/config"
	"github.com/dnmos/weba/internal/ledger"
	"github.com/dnmos/weba/internal/logger"
	"github.com/dnmos/weba/internal/tpo"
	"github.com/spf13/cobra"
)

// env is what every subcommand needs once configuration is loaded.
type env struct {
	cfg    *config.Config
	layout artifacts.Layout
	ledger ledger.Ledger
}

func (e *env) client() *tpo.Client {
	return tpo.NewClient(e.cfg.TPO, e.cfg.APIToken)
}

func newRootCmd() *cobra.Command {
	e := &env{}
	var configDir string

	root := &cobra.Command{
		Use:           "cli",
		Short:         "Travelpayouts finance extraction",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configDir)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			e.cfg = cfg
			e.layout = artifacts.NewLayout(cfg.DataPath)
			e.ledger = ledger.NewFileLedger(e.layout.LedgerFile())

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(logger.WithContext(ctx, logger.NewWithLevel(cfg.LogLevel)))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory holding the .env file")

	root.AddCommand(
		newRunCmd(e),
		newExtractPaymentsCmd(e),
		newExtractActionsCmd(e),
		newExtractDetailsCmd(e),
		newStatusCmd(e),
		newExportCmd(e),
		newUploadCmd(e),
		newBQLoadCmd(e),
		newBQTablesCmd(e),
		newBQSummaryCmd(e),
	)
	return root
}
