package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dnmos/weba/internal/artifacts"
	"github.com/dnmos/weba/internal/ledger"
	"github.com/dnmos/weba/internal/period"
)

// PeriodRepository publishes processed periods to BigQuery.
type PeriodRepository interface {
	// LoadPeriod loads every stage file of p into its own table.
	LoadPeriod(ctx context.Context, p period.Period) ([]LoadResult, error)

	// ListTables lists the stage tables in the dataset.
	ListTables(ctx context.Context) ([]TableInfo, error)

	// Summary aggregates the loaded details table of p.
	Summary(ctx context.Context, p period.Period) (*PeriodSummary, error)
}

// BigQueryPeriodRepository is the concrete implementation of PeriodRepository.
// It holds a shared BigQuery client to avoid creating a new connection for
// each operation.
type BigQueryPeriodRepository struct {
	client  *bigquery.Client
	dataset string
	layout  artifacts.Layout
	ledger  ledger.Ledger
}

// NewBigQueryPeriodRepository creates a new instance of BigQueryPeriodRepository
// with a shared BigQuery client.
func NewBigQueryPeriodRepository(ctx context.Context, projectID, dataset string, layout artifacts.Layout, led ledger.Ledger) (*BigQueryPeriodRepository, error) {
	if projectID == "" {
		return nil, fmt.Errorf("NewBigQueryPeriodRepository: project ID is required")
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryPeriodRepository: creating client: %w", err)
	}
	return &BigQueryPeriodRepository{
		client:  client,
		dataset: dataset,
		layout:  layout,
		ledger:  led,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryPeriodRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// LoadPeriod refuses periods missing from the ledger, then delegates to
// LoadPeriodWithClient.
func (r *BigQueryPeriodRepository) LoadPeriod(ctx context.Context, p period.Period) ([]LoadResult, error) {
	if !r.ledger.IsProcessed(ctx, p) {
		return nil, fmt.Errorf("LoadPeriod: %s: %w", p, ErrNotProcessed)
	}
	return LoadPeriodWithClient(ctx, r.client, r.dataset, r.layout, p)
}

// ListTables delegates to ListTablesWithClient.
func (r *BigQueryPeriodRepository) ListTables(ctx context.Context) ([]TableInfo, error) {
	return ListTablesWithClient(ctx, r.client, r.dataset)
}

// Summary delegates to SummaryWithClient.
func (r *BigQueryPeriodRepository) Summary(ctx context.Context, p period.Period) (*PeriodSummary, error) {
	return SummaryWithClient(ctx, r.client, r.dataset, p)
}

// Ensure BigQueryPeriodRepository implements PeriodRepository.
var _ PeriodRepository = (*BigQueryPeriodRepository)(nil)
