package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/dnmos/weba/internal/logger"
	"github.com/google/uuid"
)

// ErrRunInProgress is returned by Runner.Start while a run is executing.
var ErrRunInProgress = errors.New("a run is already in progress")

// RunState is what the Runner knows about a run it started.
type RunState struct {
	RunID  string     `json:"run_id"`
	Done   bool       `json:"done"`
	Error  string     `json:"error,omitempty"`
	Report *RunReport `json:"report,omitempty"`
}

// Runner starts orchestrator runs in the background, one at a time.
type Runner struct {
	orch *Orchestrator

	mu      sync.Mutex
	current string
	runs    map[string]*RunState
	wg      sync.WaitGroup
}

// NewRunner creates a Runner for orch.
func NewRunner(orch *Orchestrator) *Runner {
	return &Runner{orch: orch, runs: make(map[string]*RunState)}
}

// Start launches a run and returns its ID without waiting for it. The run
// keeps the logger of ctx but not its cancellation.
func (r *Runner) Start(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != "" {
		return r.current, ErrRunInProgress
	}

	runID := uuid.NewString()
	r.current = runID
	r.runs[runID] = &RunState{RunID: runID}

	runCtx := logger.WithContext(context.Background(), logger.FromContext(ctx))
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		report, err := r.orch.RunWithID(runCtx, runID)

		r.mu.Lock()
		defer r.mu.Unlock()
		state := r.runs[runID]
		state.Done = true
		state.Report = report
		if err != nil {
			state.Error = err.Error()
		}
		r.current = ""
	}()
	return runID, nil
}

// Current returns the ID of the executing run, or "".
func (r *Runner) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// State returns a copy of what is known about runID.
func (r *Runner) State(runID string) (RunState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.runs[runID]
	if !ok {
		return RunState{}, false
	}
	return *state, true
}

// Wait blocks until every started run has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}
