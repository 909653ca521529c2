package extract

import (
	"context"
	"fmt"
	"sort"

	"github.com/dnmos/weba/internal/artifacts"
	"github.com/dnmos/weba/internal/logger"
	"github.com/dnmos/weba/internal/period"
	"github.com/dnmos/weba/internal/tpo"
)

const (
	// PeriodColumn is appended to every payment row.
	PeriodColumn      = "year_month"
	paymentUUIDColumn = "payment_uuid"
	commentColumn     = "comment"
	filepathColumn    = "filepath"
)

// PaymentsResult summarises one Payment Extractor run.
type PaymentsResult struct {
	// Files maps each period to the payments file written for it.
	Files map[period.Period]string
	// IndexPath is empty when nothing was written.
	IndexPath string
	Fetched   int
	Tagged    int
	Dropped   int
	// Malformed counts response elements that could not be decoded.
	Malformed int
}

// Periods returns the periods written, ascending.
func (r *PaymentsResult) Periods() []period.Period {
	out := make([]period.Period, 0, len(r.Files))
	for p := range r.Files {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PaymentExtractor fetches every payment, tags it with the period named in
// its comment and writes one payments file per period plus the index.
type PaymentExtractor struct {
	api    tpo.API
	layout artifacts.Layout
}

// NewPaymentExtractor creates a PaymentExtractor.
func NewPaymentExtractor(api tpo.API, layout artifacts.Layout) *PaymentExtractor {
	return &PaymentExtractor{api: api, layout: layout}
}

// Run performs a single get-payments call. Payments whose comment names no
// month are dropped. When no payment can be tagged a warning is logged and
// nothing is written; files from earlier runs stay in place.
func (e *PaymentExtractor) Run(ctx context.Context) (*PaymentsResult, error) {
	log := logger.FromContext(ctx).With().Str("stage", string(period.StagePayments)).Logger()

	list, err := e.api.GetPayments(ctx)
	if err != nil {
		return nil, fmt.Errorf("extract payments: %w: %w", ErrFetch, err)
	}
	records := list.Records
	log.Info().Int("count", len(records)).Int("malformed", list.Malformed).Msg("Fetched payments")

	result := &PaymentsResult{
		Files:     make(map[period.Period]string),
		Fetched:   len(records) + list.Malformed,
		Malformed: list.Malformed,
	}

	builders := make(map[period.Period]*artifacts.Builder)
	type indexEntry struct {
		period period.Period
		uuid   string
	}
	var index []indexEntry

	for _, rec := range records {
		p, ok := period.FromComment(rec.String(commentColumn))
		if !ok {
			result.Dropped++
			log.Debug().
				Str("payment_uuid", rec.String(paymentUUIDColumn)).
				Str("comment", rec.String(commentColumn)).
				Msg("Payment comment names no month, dropping")
			continue
		}

		b, ok := builders[p]
		if !ok {
			b = artifacts.NewBuilder()
			builders[p] = b
		}
		columns, values := paymentRow(rec)
		b.Add(columns, values)
		index = append(index, indexEntry{period: p, uuid: rec.String(paymentUUIDColumn)})
		result.Tagged++
	}

	if result.Tagged == 0 {
		log.Warn().Int("fetched", result.Fetched).Msg("No payments carry a period, nothing written")
		return result, nil
	}

	if err := e.layout.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("extract payments: %w", err)
	}

	periods := make([]period.Period, 0, len(builders))
	for p := range builders {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i] < periods[j] })

	for _, p := range periods {
		b := builders[p]
		path := e.layout.StageFile(period.StagePayments, p)
		if err := artifacts.WriteTable(path, withPeriod(b.Table(), p)); err != nil {
			return nil, fmt.Errorf("extract payments: write %s: %w", p, err)
		}
		result.Files[p] = path
		log.Info().Str("period", p.String()).Int("rows", b.Len()).Str("path", path).Msg("Wrote payments file")
	}

	idx := &artifacts.Table{Header: []string{PeriodColumn, paymentUUIDColumn, filepathColumn}}
	for _, entry := range index {
		idx.Rows = append(idx.Rows, []string{entry.period.String(), entry.uuid, result.Files[entry.period]})
	}
	if err := artifacts.WriteTable(e.layout.IndexFile(), idx); err != nil {
		return nil, fmt.Errorf("extract payments: write index: %w", err)
	}
	result.IndexPath = e.layout.IndexFile()

	log.Info().
		Int("periods", len(result.Files)).
		Int("tagged", result.Tagged).
		Int("dropped", result.Dropped).
		Int("malformed", result.Malformed).
		Msg("Payments extracted")
	return result, nil
}

// paymentRow returns the record's columns in API order. A period key sent by
// the API is left out; withPeriod adds the derived one.
func paymentRow(rec tpo.Record) ([]string, []string) {
	columns := make([]string, 0, len(rec.Keys))
	values := make([]string, 0, len(rec.Keys))
	for _, k := range rec.Keys {
		if k == PeriodColumn {
			continue
		}
		columns = append(columns, k)
		values = append(values, rec.String(k))
	}
	return columns, values
}

// withPeriod appends the period column as the last column of t.
func withPeriod(t *artifacts.Table, p period.Period) *artifacts.Table {
	t.Header = append(t.Header, PeriodColumn)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], p.String())
	}
	return t
}
