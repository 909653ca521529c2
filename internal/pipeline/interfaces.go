package pipeline

import (
	"context"

	"github.com/dnmos/weba/internal/extract"
)

// PaymentStage fetches payments and writes one payments file per period.
type PaymentStage interface {
	Run(ctx context.Context) (*extract.PaymentsResult, error)
}

// ActionStage turns one payments file into the period's actions file.
type ActionStage interface {
	Run(ctx context.Context, paymentsPath string) (*extract.ActionsResult, error)
}

// DetailStage turns one actions file into the period's details file.
type DetailStage interface {
	Run(ctx context.Context, actionsPath string) (*extract.DetailsResult, error)
}

var (
	_ PaymentStage = (*extract.PaymentExtractor)(nil)
	_ ActionStage  = (*extract.ActionExtractor)(nil)
	_ DetailStage  = (*extract.DetailExtractor)(nil)
)
