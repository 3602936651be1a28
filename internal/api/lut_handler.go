package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/framecull/framecull-agent/internal/lut"
)

func listLUTsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries := cfg.Catalog.Entries()
		resp := LUTsResponse{LUTs: make([]LUTEntryResponse, len(entries))}
		for i, e := range entries {
			resp.LUTs[i] = LUTToResponse(e)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func importLUTHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ImportLUTRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Name == "" || req.Data == "" {
			WriteError(w, http.StatusBadRequest, "name and data are required", "BAD_REQUEST")
			return
		}

		entry, err := cfg.Catalog.Import(r.Context(), req.Name, []byte(req.Data))
		if err != nil {
			var parseErr *lut.ParseError
			if errors.As(err, &parseErr) {
				WriteError(w, http.StatusUnprocessableEntity, parseErr.Error(), "LUT_PARSE_ERROR")
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusCreated, LUTToResponse(entry))
	}
}

func deleteLUTHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := cfg.Catalog.Delete(r.Context(), chi.URLParam(r, "id"))
		switch {
		case errors.Is(err, lut.ErrBuiltinLocked):
			WriteError(w, http.StatusConflict, "bundled luts cannot be removed", "BUILTIN_LOCKED")
		case errors.Is(err, lut.ErrEntryNotFound):
			WriteError(w, http.StatusNotFound, "lut not found", "NOT_FOUND")
		case err != nil:
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

func listPreferencesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prefs, err := cfg.Catalog.Preferences(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list preferences", "INTERNAL_ERROR")
			return
		}

		resp := PreferencesResponse{Preferences: make([]PreferenceResponse, len(prefs))}
		for i, p := range prefs {
			resp.Preferences[i] = PreferenceToResponse(p)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func learnPreferenceHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LearnPreferenceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.LUTID == "" || (req.Gamma == "" && req.Primaries == "") {
			WriteError(w, http.StatusBadRequest, "lut_id and a camera profile are required", "BAD_REQUEST")
			return
		}

		err := cfg.Catalog.LearnPreference(r.Context(), req.Gamma, req.Primaries, req.LUTID)
		switch {
		case errors.Is(err, lut.ErrEntryNotFound):
			WriteError(w, http.StatusNotFound, "lut not found", "NOT_FOUND")
		case err != nil:
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}
}
