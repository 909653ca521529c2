package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dnmos/weba/internal/artifacts"
	"github.com/dnmos/weba/internal/logger"
	"github.com/dnmos/weba/internal/period"
	"github.com/dnmos/weba/internal/tpo"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	// DefaultCurrency is the currency amounts are requested in.
	DefaultCurrency = "usd"
	// DefaultDetailDelay spaces consecutive get_action_details calls.
	DefaultDetailDelay = 100 * time.Millisecond

	profitColumn = "profit"
)

// baseColumns are copied from the top level of each action detail.
var baseColumns = []string{"action_id", "campaign_id", "action_state", "sub_id", "price", "profit", "booked_at"}

// historyFields maps the first history entry onto prefixed columns.
var historyFields = []string{"action_state", "price", "profit", "profit_diff", "updated_at"}

// DetailsResult summarises one Detail Extractor run.
type DetailsResult struct {
	Period   period.Period
	Path     string
	Actions  int
	Failed   int
	NotFound int
	Rows     int
	// Profit is the sum of the parseable profit cells written.
	Profit decimal.Decimal
}

// DetailExtractor fetches the detail record of every action of one period.
type DetailExtractor struct {
	api      tpo.API
	layout   artifacts.Layout
	currency string
	delay    time.Duration
}

// NewDetailExtractor creates a DetailExtractor. An empty currency falls back
// to DefaultCurrency. A zero delay disables pacing.
func NewDetailExtractor(api tpo.API, layout artifacts.Layout, currency string, delay time.Duration) *DetailExtractor {
	if currency == "" {
		currency = DefaultCurrency
	}
	if delay < 0 {
		delay = 0
	}
	return &DetailExtractor{api: api, layout: layout, currency: currency, delay: delay}
}

// Run reads the actions file at actionsPath and writes the period's details
// file. Calls are spaced by the configured delay. Failures for a single
// action are logged and the action is omitted. If there was at least one
// action and every call failed, the stage fails with ErrNoData.
func (e *DetailExtractor) Run(ctx context.Context, actionsPath string) (*DetailsResult, error) {
	log := logger.FromContext(ctx).With().Str("stage", string(period.StageActionDetails)).Logger()

	actions, p, err := readInput(actionsPath, period.StagePaymentActions, ActionIDColumn)
	if err != nil {
		return nil, fmt.Errorf("extract details: %w", err)
	}
	log = log.With().Str("period", p.String()).Logger()

	limiter := rate.NewLimiter(rate.Inf, 1)
	if e.delay > 0 {
		limiter = rate.NewLimiter(rate.Every(e.delay), 1)
	}

	result := &DetailsResult{Period: p, Profit: decimal.Zero}
	builder := artifacts.NewBuilder(detailHeader()...)

	for _, id := range actions.Values(ActionIDColumn) {
		id = strings.TrimSpace(id)
		if id == "" {
			log.Warn().Msg("Action row without action_id, skipping")
			continue
		}
		result.Actions++

		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("extract details: %w", err)
		}

		detail, err := e.api.GetActionDetails(ctx, id, e.currency)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("extract details: %w", ctx.Err())
			}
			result.Failed++
			if tpo.IsNotFound(err) {
				result.NotFound++
				log.Warn().Str("action_id", id).Msg("action not found")
				continue
			}
			event := log.Warn()
			if errors.Is(err, tpo.ErrMalformed) {
				event = log.Error()
			}
			event.Err(err).Str("action_id", id).Msg("Cannot fetch action details, skipping action")
			continue
		}

		columns, values := flattenDetail(detail)
		builder.Add(columns, values)
		result.addProfit(detail.Fields.String(profitColumn))
	}

	if result.Actions > 0 && result.Failed == result.Actions {
		return nil, fmt.Errorf("extract details: period %s: all %d detail calls failed: %w", p, result.Failed, ErrNoData)
	}
	if result.Actions == 0 {
		log.Warn().Msg("No actions in input, writing header-only file")
	}

	table := builder.Table()
	result.Path = e.layout.StageFile(period.StageActionDetails, p)
	if err := artifacts.WriteTable(result.Path, table); err != nil {
		return nil, fmt.Errorf("extract details: %w", err)
	}
	result.Rows = table.Len()

	log.Info().
		Int("actions", result.Actions).
		Int("failed", result.Failed).
		Int("not_found", result.NotFound).
		Int("rows", result.Rows).
		Str("profit", result.Profit.String()).
		Str("path", result.Path).
		Msg("Action details extracted")
	return result, nil
}

func (r *DetailsResult) addProfit(cell string) {
	if cell == "" {
		return
	}
	v, err := decimal.NewFromString(cell)
	if err != nil {
		return
	}
	r.Profit = r.Profit.Add(v)
}

func detailHeader() []string {
	header := append([]string(nil), baseColumns...)
	for _, f := range historyFields {
		header = append(header, "history_"+f)
	}
	return header
}

// flattenDetail turns one action detail into a row: the base fields, the
// first history entry and one metadata_<name> column per metadata entry.
func flattenDetail(d *tpo.ActionDetail) ([]string, []string) {
	columns := detailHeader()
	values := make([]string, 0, len(columns)+len(d.Metadata))

	for _, c := range baseColumns {
		values = append(values, d.Fields.String(c))
	}

	var first tpo.Record
	if len(d.History) > 0 {
		first = d.History[0]
	}
	for _, f := range historyFields {
		values = append(values, first.String(f))
	}

	for _, m := range d.Metadata {
		columns = append(columns, "metadata_"+m.Name)
		values = append(values, tpo.Cell(m.Value))
	}
	return columns, values
}
