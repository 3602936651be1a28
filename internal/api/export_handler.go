package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/framecull/framecull-agent/internal/export"
)

func startExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExportStartRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		jobID, err := cfg.Exporter.Start(r.Context(), export.Request{
			Mode:      export.Mode(req.Mode),
			OutputDir: req.OutputDir,
		})
		switch {
		case errors.Is(err, export.ErrJobRunning):
			WriteError(w, http.StatusConflict, "an export job is already running", "JOB_RUNNING")
		case err != nil:
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
		default:
			WriteJSON(w, http.StatusAccepted, ExportStartResponse{JobID: jobID})
		}
	}
}

func cancelExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !cfg.Exporter.IsRunning() {
			WriteError(w, http.StatusConflict, "no export job running", "NO_JOB")
			return
		}
		cfg.Exporter.Cancel()
		w.WriteHeader(http.StatusAccepted)
	}
}

func listExportJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := cfg.ExportStore.ListJobs(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		resp := ExportJobsResponse{Jobs: make([]ExportJobResponse, len(jobs))}
		for i := range jobs {
			resp.Jobs[i] = JobToResponse(&jobs[i], nil)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getExportJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, items, err := cfg.ExportStore.GetJob(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, JobToResponse(job, items))
	}
}
