package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dnmos/weba/internal/api/handlers"
	"github.com/dnmos/weba/internal/api/middleware"
	"github.com/dnmos/weba/internal/config"
	"github.com/dnmos/weba/internal/jobs/inmemory"
	"github.com/dnmos/weba/internal/logger"
	"github.com/dnmos/weba/internal/pipeline"
)

func main() {
	log := logger.New()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log = logger.NewWithLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize pipeline
	orch := pipeline.New(cfg, inmemory.NewStore())
	runner := pipeline.NewRunner(orch)
	jobStore := orch.Jobs()

	// Initialize handlers
	periodsHandler := handlers.NewPeriodsHandler(orch, log)
	runsHandler := handlers.NewRunsHandler(runner, jobStore, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	// Create router
	mux := http.NewServeMux()

	// Periods endpoints
	mux.HandleFunc("/api/periods", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			periodsHandler.ListPeriods(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Runs endpoints
	mux.HandleFunc("/api/runs", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			runsHandler.StartRun(w, r)
		case http.MethodGet:
			runsHandler.CurrentRun(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/runs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			runID := strings.TrimPrefix(r.URL.Path, "/api/runs/")
			if runID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Run ID is required")
				return
			}
			runsHandler.GetRun(w, r, runID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(mux),
			),
		),
	)

	// Detail calls are paced, so a run can take minutes; runs are started in
	// the background and polled.
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.APIPort).Str("data_path", cfg.DataPath).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if current := runner.Current(); current != "" {
		log.Info().Str("run_id", current).Msg("Waiting for running extraction to finish")
	}
	runner.Wait()

	log.Info().Msg("Server exited")
}
