// Package pipeline orchestrates the extraction stages: payments once per
// run, then actions, details and the ledger update for every period that
// is due.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dnmos/weba/internal/artifacts"
	"github.com/dnmos/weba/internal/config"
	"github.com/dnmos/weba/internal/jobs"
	"github.com/dnmos/weba/internal/jobs/inmemory"
	"github.com/dnmos/weba/internal/ledger"
	"github.com/dnmos/weba/internal/logger"
	"github.com/dnmos/weba/internal/period"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrPaymentsFailed aborts a run before any period is touched.
var ErrPaymentsFailed = errors.New("payment extraction failed")

// Candidate is a period discovered from a payments file.
type Candidate struct {
	Period period.Period
	Path   string
}

// Orchestrator runs the extraction pipeline.
type Orchestrator struct {
	minPeriod period.Period
	layout    artifacts.Layout
	ledger    ledger.Ledger
	payments  PaymentStage
	actions   ActionStage
	details   DetailStage
	store     jobs.JobStore
	pipeline  *Pipeline
}

// NewOrchestrator wires the stages together. A nil store is replaced with
// an in-memory one.
func NewOrchestrator(
	cfg *config.Config,
	layout artifacts.Layout,
	led ledger.Ledger,
	payments PaymentStage,
	actions ActionStage,
	details DetailStage,
	store jobs.JobStore,
) *Orchestrator {
	if store == nil {
		store = inmemory.NewStore()
	}
	return &Orchestrator{
		minPeriod: cfg.MinPeriod,
		layout:    layout,
		ledger:    led,
		payments:  payments,
		actions:   actions,
		details:   details,
		store:     store,
		pipeline:  NewPeriodPipeline(actions, details, led),
	}
}

// Jobs returns the store the orchestrator records period jobs in.
func (o *Orchestrator) Jobs() jobs.JobStore {
	return o.store
}

// IsProcessed reports whether p is in the ledger.
func (o *Orchestrator) IsProcessed(ctx context.Context, p period.Period) bool {
	return o.ledger.IsProcessed(ctx, p)
}

// MarkProcessed records p in the ledger.
func (o *Orchestrator) MarkProcessed(ctx context.Context, p period.Period) error {
	return o.ledger.MarkProcessed(ctx, p)
}

// DiscoverPeriods lists the payments folder and returns one candidate per
// payments file, ascending by period. Names that do not follow the payments
// file template are logged and ignored.
func (o *Orchestrator) DiscoverPeriods(ctx context.Context) ([]Candidate, error) {
	log := logger.FromContext(ctx)

	names, err := o.layout.ListStageFiles(period.StagePayments)
	if err != nil {
		return nil, fmt.Errorf("discover periods: %w", err)
	}

	candidates := make([]Candidate, 0, len(names))
	for _, name := range names {
		p, ok := period.FromFilename(period.StagePayments, name)
		if !ok {
			log.Warn().Str("file", name).Msg("Cannot derive period from payments file name, skipping")
			continue
		}
		candidates = append(candidates, Candidate{Period: p, Path: o.layout.StageFile(period.StagePayments, p)})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Period < candidates[j].Period })
	return candidates, nil
}

// Run executes one full pass. The payment stage always runs first; if it
// fails the run stops with ErrPaymentsFailed and the ledger is untouched.
// Every other failure is confined to its period and recorded in the report.
func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	return o.RunWithID(ctx, uuid.NewString())
}

// RunWithID is Run with a caller-chosen run ID.
func (o *Orchestrator) RunWithID(ctx context.Context, runID string) (*RunReport, error) {
	report := &RunReport{RunID: runID, StartedAt: time.Now()}
	log := logger.FromContext(ctx).With().Str("run_id", report.RunID).Logger()
	ctx = logger.WithContext(ctx, log)

	log.Info().Str("min_period", o.minPeriod.String()).Msg("Starting extraction run")

	payments, err := o.payments.Run(ctx)
	if err != nil {
		report.FinishedAt = time.Now()
		log.Error().Err(err).Msg("Payment extraction failed, aborting run")
		return report, fmt.Errorf("%w: %w", ErrPaymentsFailed, err)
	}
	report.Payments = payments

	candidates, err := o.DiscoverPeriods(ctx)
	if err != nil {
		report.FinishedAt = time.Now()
		return report, err
	}
	log.Info().Int("periods", len(candidates)).Msg("Discovered periods")

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = time.Now()
			return report, err
		}
		report.Periods = append(report.Periods, o.processPeriod(ctx, report.RunID, c))
	}

	report.FinishedAt = time.Now()
	log.Info().
		Int("completed", report.Count(StatusCompleted)).
		Int("failed", report.Count(StatusFailed)).
		Int("skipped_min", report.Count(StatusSkippedMin)).
		Int("skipped_done", report.Count(StatusSkippedDone)).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Extraction run finished")
	return report, nil
}

func (o *Orchestrator) processPeriod(ctx context.Context, runID string, c Candidate) PeriodResult {
	log := logger.FromContext(ctx).With().Str("period", c.Period.String()).Logger()
	ctx = logger.WithContext(ctx, log)

	result := PeriodResult{Period: c.Period}
	jobID := o.startJob(ctx, log, runID, c.Period)

	switch {
	case c.Period.Before(o.minPeriod):
		result.Status = StatusSkippedMin
		log.Info().Msg("Period is before the minimum, skipping")
		o.finishJob(ctx, log, jobID, jobs.JobStatusSkipped, string(result.Status), "")
		return result
	case o.ledger.IsProcessed(ctx, c.Period):
		result.Status = StatusSkippedDone
		log.Info().Msg("Period already processed, skipping")
		o.finishJob(ctx, log, jobID, jobs.JobStatusSkipped, string(result.Status), "")
		return result
	}

	o.updateJob(ctx, log, jobID, jobs.JobStatusRunning, "")
	log.Info().Msg("Processing period")

	state := &PeriodState{
		Period:       c.Period,
		PaymentsPath: c.Path,
		ActionsPath:  o.layout.StageFile(period.StagePaymentActions, c.Period),
	}
	err := o.pipeline.Execute(ctx, state)
	result.ActionsPath = state.ActionsPath
	result.DetailsPath = state.DetailsPath

	if err != nil {
		result.Status = StatusFailed
		result.Err = err
		var stepErr *StepError
		if errors.As(err, &stepErr) {
			result.Reason = stepErr.Reason
		}
		log.Error().Err(err).Str("reason", string(result.Reason)).Msg("Period failed, continuing with next period")
		o.finishJob(ctx, log, jobID, jobs.JobStatusFailed, string(result.Reason), err.Error())
		return result
	}

	result.Status = StatusCompleted
	event := log.Info()
	if state.Actions != nil {
		event = event.Int("actions", state.Actions.Actions)
	}
	if state.Details != nil {
		event = event.Int("details", state.Details.Rows).Str("profit", state.Details.Profit.String())
	}
	event.Msg("Period processed")
	o.finishJob(ctx, log, jobID, jobs.JobStatusCompleted, "", "")
	return result
}

// Job bookkeeping is best effort; a store failure never changes a period's outcome.

func (o *Orchestrator) startJob(ctx context.Context, log zerolog.Logger, runID string, p period.Period) string {
	job := &jobs.PeriodJob{
		JobID:     uuid.NewString(),
		RunID:     runID,
		Period:    p.String(),
		Status:    jobs.JobStatusPending,
		CreatedAt: time.Now(),
	}
	if err := o.store.SaveJob(ctx, job); err != nil {
		log.Warn().Err(err).Msg("Cannot save period job")
	}
	return job.JobID
}

func (o *Orchestrator) updateJob(ctx context.Context, log zerolog.Logger, jobID string, status jobs.JobStatus, errMsg string) {
	if err := o.store.UpdateJobStatus(ctx, jobID, status, errMsg); err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("Cannot update period job")
	}
}

func (o *Orchestrator) finishJob(ctx context.Context, log zerolog.Logger, jobID string, status jobs.JobStatus, detail, errMsg string) {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("Cannot load period job")
		return
	}
	job.Detail = detail
	if err := o.store.SaveJob(ctx, job); err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("Cannot save period job")
		return
	}
	o.updateJob(ctx, log, jobID, status, errMsg)
}
