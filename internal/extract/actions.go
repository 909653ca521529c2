package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/dnmos/weba/internal/artifacts"
	"github.com/dnmos/weba/internal/logger"
	"github.com/dnmos/weba/internal/period"
	"github.com/dnmos/weba/internal/tpo"
)

// ActionIDColumn identifies an action in the actions and details files.
const ActionIDColumn = "action_id"

// DefaultActionsLimit is the page size sent with get_user_actions_affecting_payment.
const DefaultActionsLimit = 300

// ActionsResult summarises one Action Extractor run.
type ActionsResult struct {
	Period   period.Period
	Path     string
	Payments int
	Failed   int
	Actions  int
}

// ActionExtractor fetches the actions affecting every payment of one period.
type ActionExtractor struct {
	api    tpo.API
	layout artifacts.Layout
	limit  int
}

// NewActionExtractor creates an ActionExtractor. A non-positive limit falls
// back to DefaultActionsLimit.
func NewActionExtractor(api tpo.API, layout artifacts.Layout, limit int) *ActionExtractor {
	if limit <= 0 {
		limit = DefaultActionsLimit
	}
	return &ActionExtractor{api: api, layout: layout, limit: limit}
}

// Run reads the payments file at paymentsPath and writes the period's
// actions file. Failures for a single payment are logged and that payment
// is omitted. If there was at least one payment and every call failed, the
// stage fails with ErrNoData and nothing is written.
func (e *ActionExtractor) Run(ctx context.Context, paymentsPath string) (*ActionsResult, error) {
	log := logger.FromContext(ctx).With().Str("stage", string(period.StagePaymentActions)).Logger()

	payments, p, err := readInput(paymentsPath, period.StagePayments, paymentUUIDColumn, PeriodColumn)
	if err != nil {
		return nil, fmt.Errorf("extract actions: %w", err)
	}
	log = log.With().Str("period", p.String()).Logger()

	result := &ActionsResult{Period: p}
	builder := artifacts.NewBuilder()

	for _, uuid := range payments.Values(paymentUUIDColumn) {
		uuid = strings.TrimSpace(uuid)
		if uuid == "" {
			log.Warn().Msg("Payment row without payment_uuid, skipping")
			continue
		}
		result.Payments++

		actions, err := e.api.GetPaymentActions(ctx, uuid, e.limit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("extract actions: %w", ctx.Err())
			}
			result.Failed++
			log.Warn().Err(err).Str("payment_uuid", uuid).Msg("Cannot fetch payment actions, skipping payment")
			continue
		}

		for _, a := range actions {
			builder.Add(a.Keys, a.Cells())
		}
		log.Debug().Str("payment_uuid", uuid).Int("actions", len(actions)).Msg("Fetched payment actions")
	}

	if result.Payments > 0 && result.Failed == result.Payments {
		return nil, fmt.Errorf("extract actions: period %s: all %d payment calls failed: %w", p, result.Failed, ErrNoData)
	}

	table := builder.Table()
	if len(table.Header) == 0 {
		table.Header = []string{ActionIDColumn}
		log.Warn().Msg("No actions returned, writing header-only file")
	}

	result.Path = e.layout.StageFile(period.StagePaymentActions, p)
	if err := artifacts.WriteTable(result.Path, table); err != nil {
		return nil, fmt.Errorf("extract actions: %w", err)
	}
	result.Actions = table.Len()

	log.Info().
		Int("payments", result.Payments).
		Int("failed", result.Failed).
		Int("actions", result.Actions).
		Str("path", result.Path).
		Msg("Payment actions extracted")
	return result, nil
}
