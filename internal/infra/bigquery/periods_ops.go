package bigquery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"cloud.google.com/go/bigquery"
	"github.com/dnmos/weba/internal/artifacts"
	"github.com/dnmos/weba/internal/logger"
	"github.com/dnmos/weba/internal/period"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
)

// LoadPeriodWithClient loads each stage CSV of p into <dataset>.<stage>_<period>,
// replacing the table contents. Schemas are autodetected and the header row
// is skipped. Missing stage files are logged and skipped.
func LoadPeriodWithClient(ctx context.Context, client *bigquery.Client, dataset string, layout artifacts.Layout, p period.Period) ([]LoadResult, error) {
	log := logger.FromContext(ctx).With().Str("period", p.String()).Str("dataset", dataset).Logger()

	var results []LoadResult
	for _, stage := range period.Stages {
		path := layout.StageFile(stage, p)
		res, err := loadFile(ctx, client, dataset, stage, p, path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.Warn().Str("stage", string(stage)).Str("path", path).Msg("Stage file missing, not loading")
				continue
			}
			return results, fmt.Errorf("LoadPeriod: %s: %w", stage, err)
		}
		log.Info().Str("table", res.Table).Int64("rows", res.Rows).Str("job_id", res.JobID).Msg("Loaded stage file")
		results = append(results, *res)
	}
	return results, nil
}

func loadFile(ctx context.Context, client *bigquery.Client, dataset string, stage period.Stage, p period.Period, path string) (*LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	source := bigquery.NewReaderSource(f)
	source.SourceFormat = bigquery.CSV
	source.SkipLeadingRows = 1
	source.AutoDetect = true
	source.AllowQuotedNewlines = true

	table := TableName(stage, p)
	loader := client.Dataset(dataset).Table(table).LoaderFrom(source)
	loader.WriteDisposition = bigquery.WriteTruncate
	loader.CreateDisposition = bigquery.CreateIfNeeded

	job, err := loader.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("start load job: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("wait for load job %s: %w", job.ID(), err)
	}
	if err := status.Err(); err != nil {
		return nil, fmt.Errorf("load job %s: %w", job.ID(), err)
	}

	res := &LoadResult{Stage: stage, Table: table, JobID: job.ID(), Source: path}
	if status.Statistics != nil {
		if stats, ok := status.Statistics.Details.(*bigquery.LoadStatistics); ok {
			res.Rows = stats.OutputRows
		}
	}
	return res, nil
}

// ListTablesWithClient returns the stage tables of dataset ordered by period
// then stage. Other tables are ignored.
func ListTablesWithClient(ctx context.Context, client *bigquery.Client, dataset string) ([]TableInfo, error) {
	it := client.Dataset(dataset).Tables(ctx)

	var tables []TableInfo
	for {
		t, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListTables: iter next: %w", err)
		}
		if info, ok := ParseTableName(t.TableID); ok {
			tables = append(tables, info)
		}
	}

	sortTables(tables)
	return tables, nil
}

func sortTables(tables []TableInfo) {
	order := make(map[period.Stage]int, len(period.Stages))
	for i, s := range period.Stages {
		order[s] = i
	}
	sort.Slice(tables, func(i, j int) bool {
		if tables[i].Period != tables[j].Period {
			return tables[i].Period < tables[j].Period
		}
		return order[tables[i].Stage] < order[tables[j].Stage]
	})
}

// SummaryWithClient counts the rows of the period's details table and sums
// its profit column.
func SummaryWithClient(ctx context.Context, client *bigquery.Client, dataset string, p period.Period) (*PeriodSummary, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
		  COUNT(*) AS actions,
		  CAST(IFNULL(SUM(SAFE_CAST(CAST(profit AS STRING) AS NUMERIC)), 0) AS STRING) AS profit
		FROM `+"`%s.%s`", dataset, TableName(period.StageActionDetails, p)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("Summary: query read: %w", err)
	}

	var row summaryRow
	err = it.Next(&row)
	if err == iterator.Done {
		return &PeriodSummary{Period: p, Profit: decimal.Zero}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Summary: iter next: %w", err)
	}

	profit, err := decimal.NewFromString(row.Profit)
	if err != nil {
		return nil, fmt.Errorf("Summary: parse profit %q: %w", row.Profit, err)
	}
	return &PeriodSummary{Period: p, Actions: row.Actions, Profit: profit}, nil
}
