package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/dnmos/weba/internal/api/middleware"
	"github.com/dnmos/weba/internal/jobs"
	"github.com/dnmos/weba/internal/logger"
	"github.com/dnmos/weba/internal/period"
	"github.com/dnmos/weba/internal/pipeline"
	"github.com/rs/zerolog"
)

// PeriodSource lists discovered periods and their ledger state.
type PeriodSource interface {
	DiscoverPeriods(ctx context.Context) ([]pipeline.Candidate, error)
	IsProcessed(ctx context.Context, p period.Period) bool
}

// RunStarter starts background runs and reports on them.
type RunStarter interface {
	Start(ctx context.Context) (string, error)
	Current() string
	State(runID string) (pipeline.RunState, bool)
}

// PeriodView is one entry of GET /api/periods.
type PeriodView struct {
	Period    period.Period `json:"period"`
	Path      string        `json:"path"`
	Processed bool          `json:"processed"`
}

// PeriodsHandler handles period-related endpoints.
type PeriodsHandler struct {
	source PeriodSource
	log    zerolog.Logger
}

// NewPeriodsHandler creates a new periods handler.
func NewPeriodsHandler(source PeriodSource, log zerolog.Logger) *PeriodsHandler {
	return &PeriodsHandler{
		source: source,
		log:    log,
	}
}

// ListPeriods handles GET /api/periods
func (h *PeriodsHandler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithContext(r.Context(), h.log)

	candidates, err := h.source.DiscoverPeriods(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to discover periods")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to discover periods")
		return
	}

	periods := make([]PeriodView, 0, len(candidates))
	processed := 0
	for _, c := range candidates {
		done := h.source.IsProcessed(ctx, c.Period)
		if done {
			processed++
		}
		periods = append(periods, PeriodView{Period: c.Period, Path: c.Path, Processed: done})
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"periods":   periods,
		"count":     len(periods),
		"processed": processed,
	})
}

// RunsHandler handles run-related endpoints.
type RunsHandler struct {
	runner RunStarter
	store  jobs.JobStore
	log    zerolog.Logger
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(runner RunStarter, store jobs.JobStore, log zerolog.Logger) *RunsHandler {
	return &RunsHandler{
		runner: runner,
		store:  store,
		log:    log,
	}
}

// StartRun handles POST /api/runs
func (h *RunsHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r, h.log)

	runID, err := h.runner.Start(logger.WithContext(r.Context(), log))
	if runID != "" {
		w.Header().Set(middleware.RunIDHeader, runID)
	}
	if errors.Is(err, pipeline.ErrRunInProgress) {
		middleware.WriteJSON(w, http.StatusConflict, map[string]string{
			"error":  "Run already in progress",
			"run_id": runID,
		})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to start run")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to start run")
		return
	}

	log.Info().Str("run_id", runID).Msg("Run started")
	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"run_id": runID,
		"status": string(jobs.JobStatusRunning),
	})
}

// CurrentRun handles GET /api/runs
func (h *RunsHandler) CurrentRun(w http.ResponseWriter, r *http.Request) {
	current := h.runner.Current()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"running": current != "",
		"run_id":  current,
	})
}

// GetRun handles GET /api/runs/{id}
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request, runID string) {
	ctx := r.Context()
	w.Header().Set(middleware.RunIDHeader, runID)

	state, ok := h.runner.State(runID)
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Run not found")
		return
	}

	periodJobs, err := h.store.ListJobs(ctx, jobs.JobFilter{RunID: runID})
	if err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to list run jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list run jobs")
		return
	}
	if periodJobs == nil {
		periodJobs = []*jobs.PeriodJob{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"done":   state.Done,
		"error":  state.Error,
		"jobs":   periodJobs,
		"count":  len(periodJobs),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Parse query parameters
	query := r.URL.Query()
	filter := jobs.JobFilter{
		RunID:  query.Get("run_id"),
		Period: query.Get("period"),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}
	if jobsList == nil {
		jobsList = []*jobs.PeriodJob{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
