package jobs

import (
	"context"
	"time"
)

// JobStatus represents the current status of a period job.
type JobStatus string

const (
	// JobStatusPending indicates the period was discovered but not started.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the period's stages are executing.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates every stage succeeded and the period was recorded.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates a stage failed for the period.
	JobStatusFailed JobStatus = "failed"
	// JobStatusSkipped indicates the period was filtered or already processed.
	JobStatusSkipped JobStatus = "skipped"
)

// PeriodJob tracks the processing of one period within one run.
type PeriodJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// RunID groups the jobs of one orchestrator run.
	RunID string `json:"run_id"`

	// Period is the YYYYMM token being processed.
	Period string `json:"period"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// Detail is the skip or failure reason, e.g. "skipped_done" or "details".
	Detail string `json:"detail,omitempty"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job finished (success, failure or skip).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`
}

// JobStore defines the interface for storing and retrieving period jobs.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *PeriodJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*PeriodJob, error)

	// ListJobs retrieves jobs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*PeriodJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// RunID filters jobs by run.
	RunID string

	// Period filters jobs by period.
	Period string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
