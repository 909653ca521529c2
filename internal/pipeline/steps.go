package pipeline

import (
	"context"
	"fmt"

	"github.com/dnmos/weba/internal/extract"
	"github.com/dnmos/weba/internal/ledger"
	"github.com/dnmos/weba/internal/period"
)

// PeriodStep represents a single step in the per-period pipeline.
type PeriodStep interface {
	// Reason names the step; it becomes the failure reason when the step fails.
	Reason() FailureReason
	Execute(ctx context.Context, state *PeriodState) error
}

// PeriodState holds the shared state across the steps of one period.
type PeriodState struct {
	Period       period.Period
	PaymentsPath string
	ActionsPath  string
	DetailsPath  string
	Actions      *extract.ActionsResult
	Details      *extract.DetailsResult
}

// ExtractActionsStep writes the actions file from the payments file.
type ExtractActionsStep struct {
	stage ActionStage
}

func (s *ExtractActionsStep) Reason() FailureReason { return ReasonActions }

func (s *ExtractActionsStep) Execute(ctx context.Context, state *PeriodState) error {
	result, err := s.stage.Run(ctx, state.PaymentsPath)
	if err != nil {
		return err
	}
	state.Actions = result
	return nil
}

// ExtractDetailsStep writes the details file from the actions file.
type ExtractDetailsStep struct {
	stage DetailStage
}

func (s *ExtractDetailsStep) Reason() FailureReason { return ReasonDetails }

func (s *ExtractDetailsStep) Execute(ctx context.Context, state *PeriodState) error {
	result, err := s.stage.Run(ctx, state.ActionsPath)
	if err != nil {
		return err
	}
	state.Details = result
	state.DetailsPath = result.Path
	return nil
}

// MarkProcessedStep records the period in the ledger. It must run last.
type MarkProcessedStep struct {
	ledger ledger.Ledger
}

func (s *MarkProcessedStep) Reason() FailureReason { return ReasonLedger }

func (s *MarkProcessedStep) Execute(ctx context.Context, state *PeriodState) error {
	return s.ledger.MarkProcessed(ctx, state.Period)
}

// StepError reports which step of a Pipeline failed.
type StepError struct {
	Index  int
	Reason FailureReason
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("pipeline step %d (%s) failed: %v", e.Index, e.Reason, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PeriodStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PeriodStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially and stops at the first failure,
// which is returned as a *StepError.
func (p *Pipeline) Execute(ctx context.Context, state *PeriodState) error {
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return &StepError{Index: i + 1, Reason: step.Reason(), Err: err}
		}
		if err := step.Execute(ctx, state); err != nil {
			return &StepError{Index: i + 1, Reason: step.Reason(), Err: err}
		}
	}
	return nil
}

// NewPeriodPipeline creates the standard three-step pipeline:
// actions, details, then the ledger update.
func NewPeriodPipeline(actions ActionStage, details DetailStage, led ledger.Ledger) *Pipeline {
	return NewPipeline(
		&ExtractActionsStep{stage: actions},
		&ExtractDetailsStep{stage: details},
		&MarkProcessedStep{ledger: led},
	)
}
