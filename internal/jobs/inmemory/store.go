package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dnmos/weba/internal/jobs"
)

// ErrJobNotFound is returned when no job has the requested ID.
var ErrJobNotFound = errors.New("job not found")

// Store is an in-memory implementation of JobStore.
// It is safe for concurrent use. Data is lost on process restart.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.PeriodJob
}

// NewStore creates a new in-memory job store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*jobs.PeriodJob),
	}
}

// SaveJob implements the JobStore interface.
func (s *Store) SaveJob(ctx context.Context, job *jobs.PeriodJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Create a copy to avoid external modifications
	jobCopy := *job
	s.jobs[job.JobID] = &jobCopy

	return nil
}

// GetJob implements the JobStore interface.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.PeriodJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	jobCopy := *job
	return &jobCopy, nil
}

// ListJobs implements the JobStore interface. Results are ordered by
// creation time, then period.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.PeriodJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*jobs.PeriodJob

	for _, job := range s.jobs {
		if filter.RunID != "" && job.RunID != filter.RunID {
			continue
		}
		if filter.Period != "" && job.Period != filter.Period {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}

		jobCopy := *job
		result = append(result, &jobCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].Period < result[j].Period
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.PeriodJob{}, nil
		}
		result = result[filter.Offset:]
	}

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

// UpdateJobStatus implements the JobStore interface. Moving to running sets
// StartedAt; moving to a terminal status sets CompletedAt.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	now := time.Now()
	job.Status = status
	switch status {
	case jobs.JobStatusRunning:
		job.StartedAt = &now
	case jobs.JobStatusCompleted, jobs.JobStatusFailed, jobs.JobStatusSkipped:
		job.CompletedAt = &now
	}
	if errorMsg != "" {
		job.Error = errorMsg
	}

	return nil
}

// Ensure Store implements JobStore interface.
var _ jobs.JobStore = (*Store)(nil)
