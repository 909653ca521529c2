package pipeline

import (
	"time"

	"github.com/dnmos/weba/internal/extract"
	"github.com/dnmos/weba/internal/period"
)

// PeriodStatus is the outcome of one period within a run.
type PeriodStatus string

const (
	StatusCompleted   PeriodStatus = "completed"
	StatusFailed      PeriodStatus = "failed"
	StatusSkippedMin  PeriodStatus = "skipped_min"
	StatusSkippedDone PeriodStatus = "skipped_done"
)

// FailureReason names the step that failed a period.
type FailureReason string

const (
	ReasonActions FailureReason = "actions"
	ReasonDetails FailureReason = "details"
	ReasonLedger  FailureReason = "ledger"
)

// PeriodResult is the outcome of one discovered period.
type PeriodResult struct {
	Period      period.Period `json:"period"`
	Status      PeriodStatus  `json:"status"`
	Reason      FailureReason `json:"reason,omitempty"`
	Err         error         `json:"-"`
	ActionsPath string        `json:"actions_path,omitempty"`
	DetailsPath string        `json:"details_path,omitempty"`
}

// RunReport describes one orchestrator run.
type RunReport struct {
	RunID      string                  `json:"run_id"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
	Payments   *extract.PaymentsResult `json:"-"`
	Periods    []PeriodResult          `json:"periods"`
}

// Count returns how many periods ended with status.
func (r *RunReport) Count(status PeriodStatus) int {
	n := 0
	for _, p := range r.Periods {
		if p.Status == status {
			n++
		}
	}
	return n
}

// Failed reports whether any period failed.
func (r *RunReport) Failed() bool {
	return r.Count(StatusFailed) > 0
}
