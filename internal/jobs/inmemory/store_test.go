package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/dnmos/weba/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	job := &jobs.PeriodJob{JobID: "j1", RunID: "r1", Period: "202001", Status: jobs.JobStatusPending}
	require.NoError(t, s.SaveJob(ctx, job))

	job.Status = jobs.JobStatusFailed
	got, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusPending, got.Status, "stored job must not alias the caller's value")

	_, err = s.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	assert.Error(t, s.SaveJob(ctx, &jobs.PeriodJob{}))
}

func TestStore_UpdateJobStatus(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.SaveJob(ctx, &jobs.PeriodJob{JobID: "j1", Status: jobs.JobStatusPending}))

	require.NoError(t, s.UpdateJobStatus(ctx, "j1", jobs.JobStatusRunning, ""))
	got, _ := s.GetJob(ctx, "j1")
	assert.NotNil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, s.UpdateJobStatus(ctx, "j1", jobs.JobStatusFailed, "details stage failed"))
	got, _ = s.GetJob(ctx, "j1")
	assert.Equal(t, jobs.JobStatusFailed, got.Status)
	assert.Equal(t, "details stage failed", got.Error)
	assert.NotNil(t, got.CompletedAt)

	assert.ErrorIs(t, s.UpdateJobStatus(ctx, "nope", jobs.JobStatusRunning, ""), ErrJobNotFound)
}

func TestStore_ListJobs(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, j := range []*jobs.PeriodJob{
		{JobID: "a", RunID: "r1", Period: "202003", Status: jobs.JobStatusCompleted},
		{JobID: "b", RunID: "r1", Period: "202001", Status: jobs.JobStatusSkipped},
		{JobID: "c", RunID: "r2", Period: "202001", Status: jobs.JobStatusCompleted},
	} {
		j.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.SaveJob(ctx, j))
	}

	r1, err := s.ListJobs(ctx, jobs.JobFilter{RunID: "r1"})
	require.NoError(t, err)
	require.Len(t, r1, 2)
	assert.Equal(t, "a", r1[0].JobID)
	assert.Equal(t, "b", r1[1].JobID)

	completed, err := s.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusCompleted})
	require.NoError(t, err)
	assert.Len(t, completed, 2)

	byPeriod, err := s.ListJobs(ctx, jobs.JobFilter{Period: "202001", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, byPeriod, 1)
	assert.Equal(t, "c", byPeriod[0].JobID)

	empty, err := s.ListJobs(ctx, jobs.JobFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}
