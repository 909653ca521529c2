package pipeline

import (
	"github.com/dnmos/weba/internal/artifacts"
	"github.com/dnmos/weba/internal/config"
	"github.com/dnmos/weba/internal/extract"
	"github.com/dnmos/weba/internal/jobs"
	"github.com/dnmos/weba/internal/ledger"
	"github.com/dnmos/weba/internal/tpo"
)

// New builds an Orchestrator backed by the Travelpayouts client and the
// file ledger under cfg.DataPath.
func New(cfg *config.Config, store jobs.JobStore) *Orchestrator {
	layout := artifacts.NewLayout(cfg.DataPath)
	client := tpo.NewClient(cfg.TPO, cfg.APIToken)
	return NewOrchestrator(
		cfg,
		layout,
		ledger.NewFileLedger(layout.LedgerFile()),
		extract.NewPaymentExtractor(client, layout),
		extract.NewActionExtractor(client, layout, cfg.TPO.ActionsLimit),
		extract.NewDetailExtractor(client, layout, cfg.TPO.Currency, cfg.TPO.DetailDelay),
		store,
	)
}
