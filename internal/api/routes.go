package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/framecull/framecull-agent/internal/clip"
	"github.com/framecull/framecull-agent/internal/config"
	"github.com/framecull/framecull-agent/internal/lut"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Tokens, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Get("/clips", listClipsHandler(cfg))
		r.Post("/clips", registerClipHandler(cfg))
		r.Get("/clips/{id}", getClipHandler(cfg))
		r.Put("/clips/{id}/trim", commitTrimHandler(cfg))
		r.Put("/clips/{id}/lut", commitLUTHandler(cfg))
		r.Put("/clips/{id}/flag", flagClipHandler(cfg))

		r.Get("/luts", listLUTsHandler(cfg))
		r.Post("/luts", importLUTHandler(cfg))
		r.Delete("/luts/{id}", deleteLUTHandler(cfg))
		r.Get("/luts/preferences", listPreferencesHandler(cfg))
		r.Post("/luts/learn", learnPreferenceHandler(cfg))

		r.Post("/playback/{clipID}/open", openPlaybackHandler(cfg))
		r.Post("/playback/{clipID}/play", playHandler(cfg))
		r.Post("/playback/{clipID}/pause", pauseHandler(cfg))
		r.Post("/playback/{clipID}/scrub", scrubHandler(cfg))
		r.Put("/playback/{clipID}/lut", swapLUTHandler(cfg))
		r.Get("/playback/{clipID}", playbackStateHandler(cfg))
		r.Get("/playback/{clipID}/frame", previewFrameHandler(cfg))
		r.Delete("/playback/{clipID}", closePlaybackHandler(cfg))

		r.Post("/export", startExportHandler(cfg))
		r.Post("/export/cancel", cancelExportHandler(cfg))
		r.Get("/export/jobs", listExportJobsHandler(cfg))
		r.Get("/export/jobs/{id}", getExportJobHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version := cfg.Version
		if version == "" {
			version = config.Version
		}
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		clipsCount, _ := cfg.ClipService.Count(ctx)

		state := "idle"
		exportJobID := ""
		if cfg.Exporter != nil && cfg.Exporter.IsRunning() {
			state = "exporting"
			exportJobID = cfg.Exporter.CurrentJobID()
		}

		lastErr := ""
		if jobs, err := cfg.ExportStore.ListJobs(ctx); err == nil {
			for _, j := range jobs {
				if j.Error != "" {
					lastErr = j.Error
					break
				}
			}
		}

		WriteJSON(w, http.StatusOK, StatusResponse{
			State:        state,
			ClipsCount:   clipsCount,
			LUTsCount:    len(cfg.Catalog.Entries()),
			ExportJobID:  exportJobID,
			LastJobError: lastErr,
		})
	}
}

func listClipsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clips, err := cfg.ClipService.List(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list clips", "INTERNAL_ERROR")
			return
		}

		resp := ClipsResponse{Clips: make([]ClipResponse, len(clips))}
		for i, c := range clips {
			resp.Clips[i] = ClipToResponse(c)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func registerClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterClipRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}

		c, err := cfg.ClipService.Register(r.Context(), req.Path, req.DurationSec, req.CameraGamma, req.CameraPrimaries)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusCreated, ClipToResponse(c))
	}
}

func getClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := cfg.ClipService.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if c == nil {
			WriteError(w, http.StatusNotFound, "clip not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, ClipToResponse(c))
	}
}

func commitTrimHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TrimRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		id := chi.URLParam(r, "id")
		c, err := cfg.ClipService.CommitTrim(r.Context(), id, clip.Trim{Start: req.Start, End: req.End})
		if err != nil {
			writeClipError(w, err)
			return
		}

		// A live session follows the committed trim immediately.
		if sess, ok := cfg.Playback.Get(id); ok {
			sess.SetTrim(c.Trim)
		}
		WriteJSON(w, http.StatusOK, ClipToResponse(c))
	}
}

func commitLUTHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LUTSelectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		id := chi.URLParam(r, "id")
		c, err := cfg.ClipService.CommitLUTSelection(r.Context(), id, req.LUTID, req.Bake)
		if err != nil {
			writeClipError(w, err)
			return
		}

		if sess, ok := cfg.Playback.Get(id); ok {
			table, terr := cfg.Catalog.TableFor(c.SelectedLUT)
			if terr != nil {
				WriteError(w, http.StatusUnprocessableEntity, terr.Error(), "LUT_PARSE_ERROR")
				return
			}
			sess.SwapLUT(c.SelectedLUT, table)
		}
		WriteJSON(w, http.StatusOK, ClipToResponse(c))
	}
}

func flagClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req FlagRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if err := cfg.ClipService.SetFlagged(r.Context(), chi.URLParam(r, "id"), req.Flagged); err != nil {
			writeClipError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeClipError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, clip.ErrClipNotFound):
		WriteError(w, http.StatusNotFound, "clip not found", "NOT_FOUND")
	case errors.Is(err, clip.ErrInvalidTrim):
		WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_TRIM")
	case errors.Is(err, lut.ErrEntryNotFound):
		WriteError(w, http.StatusNotFound, "lut not found", "NOT_FOUND")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}
