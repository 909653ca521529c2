package pipeline

import (
	"context"
	"testing"

	"github.com/dnmos/weba/internal/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_SerialisesRuns(t *testing.T) {
	f := newFixture(t, "202001")

	release := make(chan struct{})
	started := make(chan struct{})
	inner := f.payments.RunFunc
	f.payments.RunFunc = func(ctx context.Context) (*extract.PaymentsResult, error) {
		close(started)
		<-release
		return inner(ctx)
	}

	r := NewRunner(f.orch)
	id, err := r.Start(f.ctx)
	require.NoError(t, err)
	<-started

	busy, err := r.Start(f.ctx)
	assert.ErrorIs(t, err, ErrRunInProgress)
	assert.Equal(t, id, busy)
	assert.Equal(t, id, r.Current())

	state, ok := r.State(id)
	require.True(t, ok)
	assert.False(t, state.Done)

	close(release)
	r.Wait()

	state, ok = r.State(id)
	require.True(t, ok)
	assert.True(t, state.Done)
	assert.Empty(t, state.Error)
	require.NotNil(t, state.Report)
	assert.Equal(t, id, state.Report.RunID)
	assert.Equal(t, 1, state.Report.Count(StatusCompleted))
	assert.Empty(t, r.Current())

	_, ok = r.State("unknown")
	assert.False(t, ok)
}

func TestRunner_RecordsFailure(t *testing.T) {
	f := newFixture(t)
	f.payments.RunFunc = func(ctx context.Context) (*extract.PaymentsResult, error) {
		return nil, extract.ErrFetch
	}

	r := NewRunner(f.orch)
	id, err := r.Start(f.ctx)
	require.NoError(t, err)
	r.Wait()

	state, _ := r.State(id)
	assert.True(t, state.Done)
	assert.Contains(t, state.Error, "payment extraction failed")
}
