package bigquery

import (
	"errors"
	"regexp"

	"github.com/dnmos/weba/internal/period"
	"github.com/shopspring/decimal"
)

// ErrNotProcessed is returned for periods missing from the ledger.
var ErrNotProcessed = errors.New("period has not been processed")

// LoadResult describes one stage file loaded into a table.
type LoadResult struct {
	Stage  period.Stage
	Table  string
	JobID  string
	Rows   int64
	Source string
}

// TableInfo describes a stage table found in the dataset.
type TableInfo struct {
	TableID string
	Stage   period.Stage
	Period  period.Period
}

// PeriodSummary aggregates one loaded details table.
type PeriodSummary struct {
	Period  period.Period
	Actions int64
	Profit  decimal.Decimal
}

// summaryRow is the query result shape; profit comes back as a string so it
// keeps its exact NUMERIC value.
type summaryRow struct {
	Actions int64  `bigquery:"actions"`
	Profit  string `bigquery:"profit"`
}

var tableIDPattern = regexp.MustCompile(`^(payments|payment_actions|action_details)_(\d{6})$`)

// TableName returns the table a stage file of p is loaded into: <stage>_<period>.
func TableName(stage period.Stage, p period.Period) string {
	return string(stage) + "_" + p.String()
}

// ParseTableName reverses TableName. Tables not created by LoadPeriod report false.
func ParseTableName(tableID string) (TableInfo, bool) {
	m := tableIDPattern.FindStringSubmatch(tableID)
	if m == nil {
		return TableInfo{}, false
	}
	p, err := period.Parse(m[2])
	if err != nil {
		return TableInfo{}, false
	}
	return TableInfo{TableID: tableID, Stage: period.Stage(m[1]), Period: p}, true
}
